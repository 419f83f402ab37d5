package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) seedTimetable(ctx context.Context, class, section string) error {
	tt, err := cli.timetables.LoadTemplate(ctx, class, section)
	if err != nil {
		return err
	}
	fmt.Printf("timetable %s%s: %d days loaded\n", tt.Class, tt.Section, len(tt.Days))
	return nil
}

func (cli *commandLine) resetPricing(ctx context.Context) error {
	conf, err := cli.prices.Reset(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("prices reset: monthly %.2f, yearly %.2f\n", conf.Monthly, conf.Yearly)
	return nil
}
