package pricing

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Subscription plans
const (
	PlanMonthly = "monthly"
	PlanYearly  = "yearly"
)

// Default prices, used until the principal saves their own.
const (
	DefaultMonthly = 5000
	DefaultYearly  = 50000
)

var (
	ErrInvalidAmount = errors.New("amount must be a non-negative number")
	ErrUnknownPlan   = errors.New("unknown subscription plan")

	Plans = []string{PlanMonthly, PlanYearly}
)

type Config struct {
	Monthly float64 `json:"monthly"`
	Yearly  float64 `json:"yearly"`
}

func Defaults() Config {
	return Config{Monthly: DefaultMonthly, Yearly: DefaultYearly}
}

// Price returns the price of a subscription plan.
func (c Config) Price(plan string) (float64, error) {
	switch NormalizePlan(plan) {
	case PlanMonthly:
		return c.Monthly, nil
	case PlanYearly:
		return c.Yearly, nil
	default:
		return 0, errors.Wrapf(ErrUnknownPlan, "%q", plan)
	}
}

// NormalizePlan lowers and trims a plan name.
func NormalizePlan(plan string) string { return strings.ToLower(strings.TrimSpace(plan)) }

// Amount is a price as submitted by a client: a JSON number or a numeric string.
type Amount float64

// ParseAmount parses a numeric string. Blank, non-numeric, negative or non-finite values are ErrInvalidAmount.
func ParseAmount(s string) (Amount, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidAmount, "%q", s)
	}
	a := Amount(f)
	if err := a.Validate(); err != nil {
		return 0, err
	}
	return a, nil
}

func (a Amount) Validate() error {
	f := float64(a)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return errors.Wrapf(ErrInvalidAmount, "%v", f)
	}
	return nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(ErrInvalidAmount, err.Error())
		}
		parsed, err := ParseAmount(s)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return errors.Wrapf(ErrInvalidAmount, "%s", data)
	}
	parsed := Amount(f)
	if err := parsed.Validate(); err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Update is a partial pricing change: nil fields are left as they are.
type Update struct {
	Monthly *Amount `json:"monthly"`
	Yearly  *Amount `json:"yearly"`
}

func (u Update) Validate() error {
	for _, a := range []*Amount{u.Monthly, u.Yearly} {
		if a == nil {
			continue
		}
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (u Update) apply(c Config) Config {
	if u.Monthly != nil {
		c.Monthly = float64(*u.Monthly)
	}
	if u.Yearly != nil {
		c.Yearly = float64(*u.Yearly)
	}
	return c
}
