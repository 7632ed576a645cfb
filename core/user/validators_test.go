package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kumbukumbu/core"
)

func newValidator(t *testing.T) (*validator.Validate, ut.Translator) {
	t.Helper()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	LoadCommonPasswords(core.NopLogger{})
	return validate, translator
}

func TestPasswordPolicy(t *testing.T) {
	validate, translator := newValidator(t)

	tests := []struct {
		name    string
		pwd     string
		wantErr string
	}{
		{name: "too short", pwd: "Ab1!", wantErr: pwdMinLenText},
		{name: "whitespace", pwd: "Abcd 123!", wantErr: pwdNoSpaceText},
		{name: "numeric", pwd: "1234567890", wantErr: pwdNotAllNumText},
		{name: "no special", pwd: "Abcdefg123", wantErr: pwdComplexityText},
		{name: "no upper", pwd: "abcdefg123!", wantErr: pwdComplexityText},
		{name: "similar to name", pwd: "Josephine-1", wantErr: pwdAttrSimText},
		{name: "similar to email", pwd: "Josephine@kivu.cd1", wantErr: pwdAttrSimText},
		{name: "common", pwd: "P@ssword1", wantErr: pwdNoCommonText},
		{name: "valid", pwd: "Kumbu-kumbu-2024!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := NewUser{Name: "Josephine", Email: "josephine@kivu.cd", Password: tt.pwd, PasswordConfirm: tt.pwd}
			err := validate.Struct(nu)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var fldErrs validator.ValidationErrors
			require.ErrorAs(t, err, &fldErrs)
			require.Len(t, fldErrs, 1)
			assert.Equal(t, "password", fldErrs[0].Field())
			assert.Equal(t, tt.wantErr, fldErrs[0].Translate(translator))
		})
	}
}

func TestUpdateUser_Validate(t *testing.T) {
	validate, _ := newValidator(t)
	orig := User{Name: "Josephine", Email: "josephine@kivu.cd"}

	t.Run("keeps the name when blank", func(t *testing.T) {
		uu := UpdateUser{Name: "  "}
		require.NoError(t, uu.Validate(orig, validate))
		assert.Equal(t, "Josephine", uu.Name)
	})

	t.Run("password is optional", func(t *testing.T) {
		uu := UpdateUser{Name: "Jo"}
		assert.NoError(t, uu.Validate(orig, validate))
	})

	t.Run("policy uses the current email", func(t *testing.T) {
		uu := UpdateUser{Password: "josephine@kivu.cd!A1", PasswordConfirm: "josephine@kivu.cd!A1"}
		err := uu.Validate(orig, validate)
		var fldErrs validator.ValidationErrors
		require.ErrorAs(t, err, &fldErrs)
		assert.Equal(t, pwdAttrSimTag, fldErrs[0].Tag())
	})

	t.Run("confirmation must match", func(t *testing.T) {
		uu := UpdateUser{Password: "Kumbu-kumbu-2024!", PasswordConfirm: "nope"}
		err := uu.Validate(orig, validate)
		var fldErrs validator.ValidationErrors
		require.ErrorAs(t, err, &fldErrs)
		assert.Equal(t, "password_confirm", fldErrs[0].Field())
	})
}
