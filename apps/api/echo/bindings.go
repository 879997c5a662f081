package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	ord.Orderings = core.ParseOrdering(ctx.QueryParam(orderingParam))
}

type (
	LoginRequest struct {
		Username string `json:"username" form:"username" validate:"required"`
		Password string `json:"password" form:"password" validate:"required"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}

	SendMailRequest struct {
		Recipient string `json:"recipient" validate:"required,email"`
		Subject   string `json:"subject" validate:"required"`
		Text      string `json:"text" validate:"required"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

func (sr *SendMailRequest) Validate(validate *validator.Validate) error {
	sr.Recipient = core.CleanString(sr.Recipient, true /* lower */)
	sr.Subject = core.CleanString(sr.Subject)
	return validate.Struct(sr)
}
