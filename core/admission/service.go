package admission

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/core/pricing"
)

const SlotName = "admissions"

// Service owns the admissions collection.
type Service struct {
	admissions core.Collection[Record]
	prices     *pricing.Service
	email      core.EmailService
	gateways   map[string]PaymentGateway
	logger     core.Logger
}

func NewService(store core.RecordStore, prices *pricing.Service, email core.EmailService, logger core.Logger, gateways ...PaymentGateway) *Service {
	svc := &Service{
		admissions: core.NewCollection[Record](store, SlotName),
		prices:     prices,
		email:      email,
		gateways:   make(map[string]PaymentGateway, len(gateways)),
		logger:     logger,
	}
	for _, g := range gateways {
		svc.gateways[g.Method()] = g
	}
	return svc
}

// NewIntake starts a new application, on the monthly plan.
func (svc *Service) NewIntake() *Intake {
	return &Intake{svc: svc, plan: pricing.PlanMonthly}
}

// Methods returns the payment methods applicants may choose from.
func (svc *Service) Methods() []string {
	methods := make([]string, 0, len(svc.gateways))
	for _, m := range []string{MethodRazorpay, MethodPayPal, MethodStripe, MethodTest} {
		if _, ok := svc.gateways[m]; ok {
			methods = append(methods, m)
		}
	}
	return methods
}

func identify(rec *Record) error {
	id, err := uuid.NewV7()
	if err != nil {
		return errors.Wrap(err, "generating admission id")
	}
	rec.ID = id.String()
	rec.CreatedAt = core.NowFunc().UTC()
	return nil
}

// maxSubmitAttempts bounds how often an append is retried when other applications are submitted concurrently.
const maxSubmitAttempts = 10

// submit appends rec to the admissions and sends the applicant a confirmation. A record that already carries an
// id is appended at most once, so a failed submit can be repeated with the same record.
func (svc *Service) submit(ctx context.Context, rec Record, docs []Document) (Record, error) {
	if rec.ID == "" {
		if err := identify(&rec); err != nil {
			return Record{}, err
		}
	}

	appendOnce := func(items []Record) ([]Record, error) {
		for _, r := range items {
			if r.ID == rec.ID {
				return items, nil
			}
		}
		return append(items, rec), nil
	}

	var err error
	for attempt := 1; attempt <= maxSubmitAttempts; attempt++ {
		if _, err = svc.admissions.Update(ctx, appendOnce); !errors.Is(err, core.ErrConflict) {
			break
		}
		svc.logger.Debug(fmt.Sprintf("admission: append conflicted (attempt %d/%d)", attempt, maxSubmitAttempts))
	}
	if err != nil {
		return Record{}, err
	}
	rec.Documents = docs

	svc.logger.Info("admission: application submitted", map[string]interface{}{
		"id": rec.ID, "paymentStatus": rec.PaymentStatus, "method": rec.PaymentMethod, "documents": len(docs),
	})
	svc.sendConfirmation(rec, docs)
	return rec, nil
}

// sendConfirmation emails the applicant a summary, with the documents they uploaded attached as a copy.
func (svc *Service) sendConfirmation(rec Record, docs []Document) {
	if svc.email == nil {
		return
	}
	to, err := mail.ParseAddress(rec.Email)
	if err != nil {
		svc.logger.Warn("admission: not sending confirmation, invalid email", err, map[string]interface{}{"id": rec.ID})
		return
	}
	to.Name = rec.FullName()

	msg := &core.EmailMessage{
		To:           []mail.Address{*to},
		Subject:      "Your application to Royal Academy",
		TemplateName: "admission_confirmation",
		TemplateData: map[string]interface{}{
			"ID":        rec.ID,
			"FirstName": rec.FirstName,
			"LastName":  rec.LastName,
			"Program":   rec.Program,
			"Level":     rec.Level,
			"Term":      rec.Term,
			"Paid":      rec.IsPaid(),
			"Plan":      rec.SubscriptionType,
			"Amount":    strconv.FormatFloat(rec.Amount, 'f', 2, 64),
			"Method":    rec.PaymentMethod,
			"Documents": len(docs),
		},
	}
	for _, doc := range docs {
		if err := msg.Attach(bytes.NewReader(doc.Content), doc.Filename); err != nil {
			svc.logger.Warn("admission: could not attach document "+doc.Filename, err, map[string]interface{}{"id": rec.ID})
		}
	}
	svc.email.SendMessages(msg)
}

// List returns the admissions matching filter, in submission order.
func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Record, error) {
	records, err := svc.admissions.Load(ctx)
	if records, err = core.FailOpen(records, err, svc.logger, "admission: listing"); err != nil {
		return nil, err
	}
	filter.Clean()
	matched := make([]Record, 0, len(records))
	for _, r := range records {
		if filter.Match(r) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Record, error) {
	records, err := svc.admissions.Load(ctx)
	if err != nil {
		return Record{}, err
	}
	id = core.CleanString(id)
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, errors.Wrapf(core.ErrNotFound, "admission %q", id)
}

// Revenue adds up the paid admissions at the current prices, the same ones applicants are charged.
func (svc *Service) Revenue(ctx context.Context) (Revenue, error) {
	records, err := svc.List(ctx, QueryFilter{})
	if err != nil {
		return Revenue{}, err
	}
	prices, err := svc.prices.Get(ctx)
	if err != nil {
		return Revenue{}, err
	}

	rev := Revenue{MonthlyPrice: prices.Monthly, YearlyPrice: prices.Yearly}
	for _, r := range records {
		switch {
		case !r.IsPaid():
			rev.Test++
		case r.SubscriptionType == pricing.PlanYearly:
			rev.Yearly++
		default:
			rev.Monthly++
		}
	}
	rev.Total = float64(rev.Monthly)*prices.Monthly + float64(rev.Yearly)*prices.Yearly
	return rev, nil
}
