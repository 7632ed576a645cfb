package user

import (
	"context"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/kumbukumbu/core"
)

var errResetLink = core.NewValidationError(nil, core.FieldError{Field: "token", Error: "invalid or expired password reset link"})

// PasswordResetNotice is the data of the "password_reset" email template.
type PasswordResetNotice struct {
	Name  string
	UID   string
	Token string
}

// PasswordResetConfirm sets a new password with the uid & token of a reset email.
type PasswordResetConfirm struct {
	UID             string `json:"uid" validate:"required"`
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

type PasswordResetService struct {
	users   *Service
	mailSvc core.EmailService
	tokens  tokenGenerator
}

func NewPasswordResetService(conf *core.Config, users *Service, mailSvc core.EmailService) *PasswordResetService {
	return &PasswordResetService{
		users:   users,
		mailSvc: mailSvc,
		tokens:  tokenGenerator{secret: []byte(conf.SecretKey), timeout: conf.PasswordResetTimeoutDelta},
	}
}

// Request emails a reset link to the active user owning email.
// Unknown & inactive users are silently ignored.
func (svc *PasswordResetService) Request(ctx context.Context, email string) error {
	usr, err := svc.users.GetByEmail(ctx, email)
	if err != nil {
		if core.KindOf(err) == core.KindNotFound {
			return nil
		}
		return errors.Wrap(err, "finding user")
	}
	if !usr.IsActive {
		return nil
	}

	token, err := svc.tokens.make(usr)
	if err != nil {
		return errors.Wrap(err, "making reset token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Reset your password",
		TemplateName: "password_reset",
		TemplateData: PasswordResetNotice{Name: usr.Name, UID: EncodeUID(usr), Token: token},
	})
	return nil
}

// Confirm checks the reset link & sets the new password, enforcing the password policy.
func (svc *PasswordResetService) Confirm(ctx context.Context, validate *validator.Validate, prc PasswordResetConfirm) (User, error) {
	if err := validate.Struct(prc); err != nil {
		return User{}, err
	}

	id, err := decodeUID(prc.UID)
	if err != nil {
		return User{}, errResetLink
	}
	usr, err := svc.users.GetByID(ctx, id)
	if err != nil {
		if core.KindOf(err) == core.KindNotFound {
			return User{}, errResetLink
		}
		return User{}, errors.Wrap(err, "finding user")
	}
	if !usr.IsActive {
		return User{}, errResetLink
	}
	if err = svc.tokens.verify(usr, prc.Token); err != nil {
		return User{}, errResetLink
	}

	uu := UpdateUser{Password: prc.Password, PasswordConfirm: prc.PasswordConfirm}
	if err = uu.Validate(usr, validate); err != nil {
		return User{}, err
	}
	return svc.users.Update(ctx, usr, uu)
}
