package admission

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/core/pricing"
)

var (
	ErrNoMethodSelected  = errors.New("no payment method selected")
	ErrUnknownMethod     = errors.New("unknown payment method")
	ErrPaymentInProgress = errors.New("a payment is already being processed")
	ErrPaymentCanceled   = errors.New("payment was canceled")
	ErrPaymentFailed     = errors.New("payment failed")
	ErrAlreadyPaid       = errors.New("the application is already paid for, submit it again")
)

// Step is a step of the application form.
type Step int

const (
	PersonalInfoStep Step = iota
	AcademicDetailsStep
	AdditionalInfoStep
	PaymentStep
)

func (s Step) String() string {
	switch s {
	case PersonalInfoStep:
		return "personalInfo"
	case AcademicDetailsStep:
		return "academicDetails"
	case AdditionalInfoStep:
		return "additionalInfo"
	case PaymentStep:
		return "payment"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// PaymentState is the state of the payment step.
type PaymentState int

const (
	Selecting PaymentState = iota
	Processing
	Succeeded
	Failed
)

func (s PaymentState) String() string {
	switch s {
	case Selecting:
		return "selecting"
	case Processing:
		return "processing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("PaymentState(%d)", int(s))
}

// StepError reports the step that is incomplete. It unwraps to a *core.ValidationError.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return e.Step.String() + ": " + e.Err.Error() }

func (e *StepError) Unwrap() error { return e.Err }

// Intake is one applicant going through the application form. It is safe for concurrent use: Cancel may be called
// while ProcessPayment is waiting on a gateway.
type Intake struct {
	svc *Service

	mu        sync.Mutex
	step      Step
	payment   PaymentState
	form      Form
	documents []Document
	plan      string
	method    string
	cancel    context.CancelFunc
	paid      *Record // charged but not yet stored
}

func (in *Intake) Step() Step {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.step
}

func (in *Intake) PaymentState() PaymentState {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.payment
}

func (in *Intake) Form() Form {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.form
}

func (in *Intake) Plan() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.plan
}

func (in *Intake) SetPersonalInfo(pi PersonalInfo) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.form.PersonalInfo = pi
}

func (in *Intake) SetAcademicDetails(ad AcademicDetails) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.form.AcademicDetails = ad
}

func (in *Intake) SetAdditionalInfo(ai AdditionalInfo) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.form.AdditionalInfo = ai
}

// AttachDocument keeps a document with the application until it is submitted. Documents are not persisted.
func (in *Intake) AttachDocument(doc Document) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.documents = append(in.documents, doc)
}

// validate checks the steps before `upTo`. On failure the intake is moved back to the incomplete step.
func (in *Intake) validate(upTo Step) error {
	in.form.PersonalInfo.clean()
	in.form.AcademicDetails.clean()
	in.form.AdditionalInfo.clean()

	for s := PersonalInfoStep; s < upTo; s++ {
		var err error
		switch s {
		case PersonalInfoStep:
			err = core.ValidateStruct(in.form.PersonalInfo)
		case AcademicDetailsStep:
			err = core.ValidateStruct(in.form.AcademicDetails)
		}
		if err != nil {
			in.step = s
			return &StepError{Step: s, Err: err}
		}
	}
	return nil
}

// Next moves to the next step once the current one is complete. The payment step is the last one.
func (in *Intake) Next() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.step == PaymentStep {
		return nil
	}
	if err := in.validate(in.step + 1); err != nil {
		return err
	}
	in.step++
	return nil
}

func (in *Intake) Back() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if err := in.checkChangeable(); err != nil {
		return err
	}
	if in.step > PersonalInfoStep {
		in.step--
	}
	if in.step != PaymentStep {
		in.payment = Selecting
	}
	return nil
}

func (in *Intake) SelectPlan(plan string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if err := in.checkChangeable(); err != nil {
		return err
	}
	plan = pricing.NormalizePlan(plan)
	if _, err := pricing.Defaults().Price(plan); err != nil {
		return core.NewValidationError(pricing.ErrUnknownPlan, core.FieldError{Field: "plan", Error: err.Error()})
	}
	in.plan = plan
	return nil
}

func (in *Intake) SelectMethod(method string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if err := in.checkChangeable(); err != nil {
		return err
	}
	method = core.CleanString(method, true /* lower */)
	if _, ok := in.svc.gateways[method]; !ok {
		return core.NewValidationError(ErrUnknownMethod, core.FieldError{Field: "method", Error: ErrUnknownMethod.Error()})
	}
	in.method = method
	in.payment = Selecting
	return nil
}

// checkChangeable reports whether the payment choices may still change. Callers hold in.mu.
func (in *Intake) checkChangeable() error {
	switch in.payment {
	case Processing:
		return ErrPaymentInProgress
	case Succeeded:
		return ErrAlreadyPaid
	}
	return nil
}

// ProcessPayment charges the selected plan through the selected gateway and, once the gateway confirms, submits the
// application. It blocks until the gateway answers, ctx is done or Cancel is called.
//
// A confirmed payment moves the intake to Succeeded. If storing the application then fails, the intake stays there
// and the next call only stores it again: the applicant is never charged twice.
func (in *Intake) ProcessPayment(ctx context.Context) (Record, error) {
	in.mu.Lock()
	if in.payment == Processing {
		in.mu.Unlock()
		return Record{}, ErrPaymentInProgress
	}
	if in.payment == Succeeded && in.paid != nil {
		rec := *in.paid
		in.mu.Unlock()
		return in.store(ctx, rec)
	}
	if err := in.validate(PaymentStep); err != nil {
		in.mu.Unlock()
		return Record{}, err
	}
	in.step = PaymentStep
	if in.method == "" {
		in.mu.Unlock()
		return Record{}, ErrNoMethodSelected
	}
	gateway := in.svc.gateways[in.method]
	plan, form := in.plan, in.form

	in.payment = Processing
	chargeCtx, cancel := context.WithCancel(ctx)
	in.cancel = cancel
	in.mu.Unlock()

	outcome, err := in.charge(chargeCtx, gateway, plan, form.Email)
	cancel()

	in.mu.Lock()
	in.cancel = nil
	if err != nil {
		in.payment = Failed
		in.mu.Unlock()
		return Record{}, err
	}

	rec := form.record()
	rec.SubscriptionType = plan
	rec.PaymentMethod = gateway.Method()
	rec.PaymentReference = outcome.Reference
	rec.Amount = outcome.amount
	rec.PaymentStatus = StatusPaid
	if outcome.Test {
		rec.PaymentStatus = StatusTest
		rec.Amount = 0
	}
	if err := identify(&rec); err != nil {
		in.svc.logger.Warn("admission: paid application left without id", err)
	}
	in.payment = Succeeded
	in.paid = &rec
	in.mu.Unlock()

	return in.store(ctx, rec)
}

// store submits a paid record. It is not affected by Cancel: the money has already been taken.
func (in *Intake) store(ctx context.Context, rec Record) (Record, error) {
	stored, err := in.svc.submit(context.WithoutCancel(ctx), rec, in.takeDocuments())
	if err != nil {
		in.svc.logger.Error("admission: paid application not stored, it will be submitted again on retry", err,
			map[string]interface{}{"reference": rec.PaymentReference})
		return Record{}, err
	}
	in.reset()
	return stored, nil
}

type chargeOutcome struct {
	Outcome
	amount float64
}

func (in *Intake) charge(ctx context.Context, gateway PaymentGateway, plan, email string) (chargeOutcome, error) {
	amount, err := in.svc.prices.Price(ctx, plan)
	if err != nil {
		return chargeOutcome{}, err
	}
	outcome, err := gateway.Initiate(ctx, Charge{Amount: amount, Plan: plan, Email: email})
	switch {
	case err == nil:
		return chargeOutcome{Outcome: outcome, amount: amount}, nil
	case errors.Is(err, context.Canceled):
		return chargeOutcome{}, ErrPaymentCanceled
	default:
		return chargeOutcome{}, errors.Wrapf(ErrPaymentFailed, "%s: %v", gateway.Method(), err)
	}
}

// Cancel abandons a pending payment. It does nothing if no payment is being processed.
func (in *Intake) Cancel() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.cancel != nil {
		in.cancel()
	}
}

// SubmitWithoutPayment is the operator/test path: it only checks the personal and academic steps, and records the
// application as a test submission without charging anything.
func (in *Intake) SubmitWithoutPayment(ctx context.Context) (Record, error) {
	in.mu.Lock()
	if err := in.checkChangeable(); err != nil {
		in.mu.Unlock()
		return Record{}, err
	}
	if err := in.validate(AdditionalInfoStep); err != nil {
		in.mu.Unlock()
		return Record{}, err
	}
	rec := in.form.record()
	rec.SubscriptionType = in.plan
	rec.PaymentStatus = StatusTest
	rec.PaymentMethod = MethodTest
	docs := in.documents
	in.mu.Unlock()

	rec, err := in.svc.submit(ctx, rec, docs)
	if err != nil {
		return Record{}, err
	}
	in.reset()
	return rec, nil
}

func (in *Intake) takeDocuments() []Document {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.documents
}

// reset clears the form and payment so the intake can be used for another application.
func (in *Intake) reset() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.step = PersonalInfoStep
	in.payment = Selecting
	in.form = Form{}
	in.documents = nil
	in.plan = pricing.PlanMonthly
	in.method = ""
	in.cancel = nil
	in.paid = nil
}
