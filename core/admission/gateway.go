package admission

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Charge is what an applicant is asked to pay.
type Charge struct {
	Amount float64
	Plan   string
	Email  string
}

// Outcome is the result of a completed payment.
type Outcome struct {
	Reference string
	Test      bool // no money was taken
}

// PaymentGateway takes a payment. Initiate blocks until the gateway confirms or ctx is done.
// None of the gateways here move real money: they simulate a provider's confirmation.
type PaymentGateway interface {
	Method() string
	Initiate(ctx context.Context, charge Charge) (Outcome, error)
}

// simulatedGateway confirms every payment after a fixed delay.
type simulatedGateway struct {
	method    string
	refPrefix string
	delay     time.Duration
}

func (g *simulatedGateway) Method() string { return g.method }

func (g *simulatedGateway) Initiate(ctx context.Context, _ Charge) (Outcome, error) {
	timer := time.NewTimer(g.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-timer.C:
		ref := strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
		return Outcome{Reference: g.refPrefix + ref}, nil
	}
}

func Razorpay(delay time.Duration) PaymentGateway {
	return &simulatedGateway{method: MethodRazorpay, refPrefix: "pay_", delay: delay}
}

func PayPal(delay time.Duration) PaymentGateway {
	return &simulatedGateway{method: MethodPayPal, refPrefix: "PAYID-", delay: delay}
}

func Stripe(delay time.Duration) PaymentGateway {
	return &simulatedGateway{method: MethodStripe, refPrefix: "pi_", delay: delay}
}

type testGateway struct{}

// Test confirms immediately and records the admission as a test submission.
func Test() PaymentGateway { return testGateway{} }

func (testGateway) Method() string { return MethodTest }

func (testGateway) Initiate(ctx context.Context, _ Charge) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	return Outcome{Test: true}, nil
}

// DefaultGateways returns the gateways offered to applicants.
func DefaultGateways(delay time.Duration) []PaymentGateway {
	return []PaymentGateway{Razorpay(delay), PayPal(delay), Stripe(delay), Test()}
}
