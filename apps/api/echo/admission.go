package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core/admission"
	"github.com/royalacademy/backoffice/core/session"
)

// AdmissionRequest is a whole application form, as submitted from the payment step.
type AdmissionRequest struct {
	admission.Form
	Plan   string `json:"plan"`
	Method string `json:"method"`
}

type admissionApi struct {
	svc *admission.Service
}

func registerAdmissionAPI(g *echo.Group, auth func(roles ...string) echo.MiddlewareFunc, svc *admission.Service) {
	api := admissionApi{svc: svc}

	ag := g.Group("/admissions")

	// public endpoints
	ag.GET("/methods", api.methods)
	ag.POST("", api.submit)
	ag.POST("/test", api.submitWithoutPayment)

	// principal dashboard
	principal := auth(session.RolePrincipal)
	ag.GET("", api.query, principal)
	ag.GET("/revenue", api.revenue, principal)
	ag.GET("/:id", api.retrieve, principal)
}

// intake fills a new intake with the submitted form.
func (api *admissionApi) intake(ctx echo.Context) (*admission.Intake, AdmissionRequest, error) {
	var data AdmissionRequest
	if err := ctx.Bind(&data); err != nil {
		return nil, data, errors.Wrap(err, "binding to AdmissionRequest")
	}
	in := api.svc.NewIntake()
	in.SetPersonalInfo(data.PersonalInfo)
	in.SetAcademicDetails(data.AcademicDetails)
	in.SetAdditionalInfo(data.AdditionalInfo)
	if data.Plan != "" {
		if err := in.SelectPlan(data.Plan); err != nil {
			return nil, data, err
		}
	}
	return in, data, nil
}

func (api *admissionApi) submit(ctx echo.Context) error {
	in, data, err := api.intake(ctx)
	if err != nil {
		return err
	}
	if data.Method != "" {
		if err := in.SelectMethod(data.Method); err != nil {
			return err
		}
	}
	// waits for the gateway; abandoned if the client goes away
	rec, err := in.ProcessPayment(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *admissionApi) submitWithoutPayment(ctx echo.Context) error {
	in, _, err := api.intake(ctx)
	if err != nil {
		return err
	}
	rec, err := in.SubmitWithoutPayment(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *admissionApi) methods(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Methods())
}

func (api *admissionApi) query(ctx echo.Context) error {
	var filter admission.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to admission.QueryFilter")
	}
	records, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing admissions")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *admissionApi) retrieve(ctx echo.Context) error {
	rec, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *admissionApi) revenue(ctx echo.Context) error {
	rev, err := api.svc.Revenue(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing revenue")
	}
	return ctx.JSON(http.StatusOK, rev)
}
