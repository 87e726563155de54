package award

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/blockward/blockward/core"
)

func newTestValidator() *validator.Validate {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func TestCategorySignedDelta(t *testing.T) {
	tests := []struct {
		name string
		cat  Category
		want int
	}{
		{name: "achievement is positive", cat: Category{Polarity: PolarityAchievement, Magnitude: 5}, want: 5},
		{name: "behaviour is negative", cat: Category{Polarity: PolarityBehaviour, Magnitude: 3}, want: -3},
		{name: "zero magnitude", cat: Category{Polarity: PolarityAchievement}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cat.SignedDelta(); got != tt.want {
				t.Errorf("SignedDelta() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestCredentialIsRevoked(t *testing.T) {
	cred := Credential{Status: StatusActive}
	if cred.IsRevoked() {
		t.Error("active credential reported as revoked")
	}
	cred.Status = StatusRevoked
	if !cred.IsRevoked() {
		t.Error("revoked credential reported as active")
	}
}

func TestNewCategoryValidate(t *testing.T) {
	validate := newTestValidator()

	tests := []struct {
		name    string
		nc      NewCategory
		wantErr bool
	}{
		{name: "valid", nc: NewCategory{Name: "Helpfulness", Polarity: PolarityAchievement, Magnitude: 5}},
		{name: "valid behaviour", nc: NewCategory{Name: "Tardiness", Polarity: PolarityBehaviour, Magnitude: 3}},
		{name: "negative magnitude is allowed", nc: NewCategory{Name: "Effort", Polarity: PolarityAchievement, Magnitude: -5}},
		{name: "missing name", nc: NewCategory{Polarity: PolarityAchievement, Magnitude: 5}, wantErr: true},
		{name: "missing polarity", nc: NewCategory{Name: "Helpfulness", Magnitude: 5}, wantErr: true},
		{name: "bad polarity", nc: NewCategory{Name: "Helpfulness", Polarity: "meh", Magnitude: 5}, wantErr: true},
		{name: "zero magnitude", nc: NewCategory{Name: "Helpfulness", Polarity: PolarityAchievement}, wantErr: true},
		{name: "bad color", nc: NewCategory{Name: "Helpfulness", Polarity: PolarityAchievement, Magnitude: 5, Color: "red"}, wantErr: true},
		{name: "hex color", nc: NewCategory{Name: "Helpfulness", Polarity: PolarityAchievement, Magnitude: 5, Color: "#00ff00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nc.Validate(validate)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewCredentialValidate(t *testing.T) {
	validate := newTestValidator()

	longTitle := make([]byte, titleMaxLen+1)
	for i := range longTitle {
		longTitle[i] = 'a'
	}

	tests := []struct {
		name    string
		ni      NewCredential
		wantErr bool
	}{
		{name: "valid", ni: NewCredential{HolderID: "h", CategoryID: "c", Title: "Well done"}},
		{name: "missing holder", ni: NewCredential{CategoryID: "c", Title: "Well done"}, wantErr: true},
		{name: "missing category", ni: NewCredential{HolderID: "h", Title: "Well done"}, wantErr: true},
		{name: "missing title", ni: NewCredential{HolderID: "h", CategoryID: "c"}, wantErr: true},
		{name: "title too long", ni: NewCredential{HolderID: "h", CategoryID: "c", Title: string(longTitle)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ni.Validate(validate)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}
