// Package contact validates and records the buyer questionnaire.
package contact

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/baxromumarov/immo-encheres/internal/textutil"
)

// LastStep is the recap step; it has nothing to validate.
const LastStep = 6

var (
	budgetRe = regexp.MustCompile(`^\d{2,9}$`)
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe  = regexp.MustCompile(`\+?[0-9 .-]{6,}`)
)

// Answers is the questionnaire as the visitor fills it in.
type Answers struct {
	DejaAchete string `json:"dejaAchete"`
	DejaVisite string `json:"dejaVisite"`
	Nom        string `json:"nom"`
	Avocat     string `json:"avocat"`
	Budget     string `json:"budget"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

// ErrInvalid is matched by every ValidationError.
var ErrInvalid = errors.New("contact: invalid answers")

// ValidationError names the step and field that blocked the questionnaire.
type ValidationError struct {
	Step    int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d: %s: %s", e.Step, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

func ouiNon(v string) bool { return v == "oui" || v == "non" }

// ValidateStep checks the answers required to leave step.
func (a Answers) ValidateStep(step int) error {
	switch step {
	case 0:
		if !ouiNon(a.DejaAchete) {
			return &ValidationError{step, "dejaAchete", "répondre oui ou non"}
		}
	case 1:
		if !ouiNon(a.DejaVisite) {
			return &ValidationError{step, "dejaVisite", "répondre oui ou non"}
		}
	case 2:
		if len([]rune(strings.TrimSpace(a.Nom))) < 2 {
			return &ValidationError{step, "nom", "au moins 2 caractères"}
		}
	case 3:
		if !ouiNon(a.Avocat) {
			return &ValidationError{step, "avocat", "répondre oui ou non"}
		}
	case 4:
		if !budgetRe.MatchString(stripSpaces(a.Budget)) {
			return &ValidationError{step, "budget", "entre 2 et 9 chiffres"}
		}
	case 5:
		if !emailRe.MatchString(a.Email) {
			return &ValidationError{step, "email", "adresse invalide"}
		}
		if !phoneRe.MatchString(a.Phone) {
			return &ValidationError{step, "phone", "numéro invalide"}
		}
	}
	return nil
}

// Validate runs every step before the recap.
func (a Answers) Validate() error {
	for step := 0; step < LastStep; step++ {
		if err := a.ValidateStep(step); err != nil {
			return err
		}
	}
	return nil
}

// BudgetValue is the budget with spaces removed, or 0.
func (a Answers) BudgetValue() int {
	n, err := strconv.Atoi(stripSpaces(a.Budget))
	if err != nil {
		return 0
	}
	return n
}

// Submission is a stored contact request.
type Submission struct {
	ID         int64     `json:"id"`
	DejaAchete bool      `json:"dejaAchete"`
	DejaVisite bool      `json:"dejaVisite"`
	Nom        string    `json:"nom"`
	Avocat     bool      `json:"avocat"`
	Budget     int64     `json:"budget"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Normalize coerces a loosely typed payload into a Submission. It never
// fails: unknown values become false, empty or 0.
func Normalize(payload map[string]any) Submission {
	source := str(payload["source"])
	if source == "" {
		source = "questionnaire"
	}
	return Submission{
		DejaAchete: isOui(payload["dejaAchete"]),
		DejaVisite: isOui(payload["dejaVisite"]),
		Nom:        textutil.Truncate(str(payload["nom"]), 100),
		Avocat:     isOui(payload["avocat"]),
		Budget:     number(payload["budget"]),
		Email:      textutil.Truncate(str(payload["email"]), 200),
		Phone:      textutil.Truncate(str(payload["phone"]), 50),
		Source:     source,
	}
}

func isOui(v any) bool {
	return strings.ToLower(str(v)) == "oui"
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func number(v any) int64 {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0
		}
		return int64(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return int64(f)
	case bool:
		if t {
			return 1
		}
	}
	return 0
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}
