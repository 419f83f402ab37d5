package admission

import (
	"time"

	"github.com/royalacademy/backoffice/core"
)

// Payment statuses
const (
	StatusPaid = "paid"
	StatusTest = "test"
)

// Payment methods
const (
	MethodRazorpay = "razorpay"
	MethodPayPal   = "paypal"
	MethodStripe   = "stripe"
	MethodTest     = "test"
)

// Record is one submitted application. Records are never updated once appended.
type Record struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"createdAt"`
	PaymentStatus    string    `json:"paymentStatus"`
	PaymentMethod    string    `json:"paymentMethod,omitempty"`
	SubscriptionType string    `json:"subscriptionType"`
	Amount           float64   `json:"amount"`
	PaymentReference string    `json:"paymentReference,omitempty"`

	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Citizenship string `json:"citizenship"`
	DateOfBirth string `json:"dateOfBirth"`

	Level   string `json:"level"`
	Term    string `json:"term"`
	Program string `json:"program"`

	Essay            string `json:"essay"`
	RecommenderName  string `json:"recommenderName"`
	RecommenderEmail string `json:"recommenderEmail"`

	Documents []Document `json:"-"`
}

func (r Record) IsPaid() bool { return r.PaymentStatus == StatusPaid }

func (r Record) FullName() string { return r.FirstName + " " + r.LastName }

// Document is a file handed in with an application (photo, ID scan). Documents are kept in memory only.
type Document struct {
	Kind     string
	Filename string
	Content  []byte
}

type PersonalInfo struct {
	FirstName   string `json:"firstName" validate:"notblank"`
	LastName    string `json:"lastName" validate:"notblank"`
	Email       string `json:"email" validate:"notblank"`
	Phone       string `json:"phone"`
	Citizenship string `json:"citizenship"`
	DateOfBirth string `json:"dateOfBirth"`
}

func (pi *PersonalInfo) clean() {
	pi.FirstName = core.CleanString(pi.FirstName)
	pi.LastName = core.CleanString(pi.LastName)
	pi.Email = core.CleanString(pi.Email, true /* lower */)
	pi.Phone = core.CleanString(pi.Phone)
	pi.Citizenship = core.CleanString(pi.Citizenship)
	pi.DateOfBirth = core.CleanString(pi.DateOfBirth)
}

type AcademicDetails struct {
	Level   string `json:"level" validate:"notblank"`
	Term    string `json:"term" validate:"notblank"`
	Program string `json:"program" validate:"notblank"`
}

func (ad *AcademicDetails) clean() {
	ad.Level = core.CleanString(ad.Level)
	ad.Term = core.CleanString(ad.Term)
	ad.Program = core.CleanString(ad.Program)
}

type AdditionalInfo struct {
	Essay            string `json:"essay"`
	RecommenderName  string `json:"recommenderName"`
	RecommenderEmail string `json:"recommenderEmail"`
}

func (ai *AdditionalInfo) clean() {
	ai.Essay = core.CleanString(ai.Essay)
	ai.RecommenderName = core.CleanString(ai.RecommenderName)
	ai.RecommenderEmail = core.CleanString(ai.RecommenderEmail, true /* lower */)
}

// Form holds what an applicant has entered so far, one part per step.
type Form struct {
	PersonalInfo    `json:"personalInfo"`
	AcademicDetails `json:"academicDetails"`
	AdditionalInfo  `json:"additionalInfo"`
}

func (f Form) record() Record {
	return Record{
		FirstName:        f.FirstName,
		LastName:         f.LastName,
		Email:            f.Email,
		Phone:            f.Phone,
		Citizenship:      f.Citizenship,
		DateOfBirth:      f.DateOfBirth,
		Level:            f.Level,
		Term:             f.Term,
		Program:          f.Program,
		Essay:            f.Essay,
		RecommenderName:  f.RecommenderName,
		RecommenderEmail: f.RecommenderEmail,
	}
}

// QueryFilter selects admissions matching all of its set fields.
type QueryFilter struct {
	Search        string `query:"search"`
	PaymentStatus string `query:"paymentStatus"`
	Plan          string `query:"plan"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.PaymentStatus = core.CleanString(qf.PaymentStatus, true /* lower */)
	qf.Plan = core.CleanString(qf.Plan, true /* lower */)
}

// Match applies the filter to r. Search is a case-insensitive match on the applicant's name, email or program.
func (qf QueryFilter) Match(r Record) bool {
	if qf.PaymentStatus != "" && r.PaymentStatus != qf.PaymentStatus {
		return false
	}
	if qf.Plan != "" && r.SubscriptionType != qf.Plan {
		return false
	}
	if qf.Search != "" &&
		!core.ContainsFold(r.FullName(), qf.Search) &&
		!core.ContainsFold(r.Email, qf.Search) &&
		!core.ContainsFold(r.Program, qf.Search) {
		return false
	}
	return true
}

// Revenue is the income from paid admissions, at the current prices.
type Revenue struct {
	Monthly      int     `json:"monthly"`      // paid monthly subscriptions
	Yearly       int     `json:"yearly"`       // paid yearly subscriptions
	Test         int     `json:"test"`         // submissions without payment
	MonthlyPrice float64 `json:"monthlyPrice"` // pricing used
	YearlyPrice  float64 `json:"yearlyPrice"`
	Total        float64 `json:"total"`
}
