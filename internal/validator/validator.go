package validator

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/SergeiKhy/shortlink-registry/internal/models"
)

// Границы срока действия ссылки в минутах
const (
	MinValidityMinutes     = 1
	MaxValidityMinutes     = 10080 // одна неделя
	DefaultValidityMinutes = 30
)

// Имена полей в FieldErrors
const (
	FieldOriginalURL     = "originalUrl"
	FieldValidityMinutes = "validityMinutes"
	FieldCustomShortCode = "customShortCode"
)

// Тексты ошибок валидации
const (
	MsgURLRequired   = "URL is required"
	MsgInvalidURL    = "Please enter a valid URL"
	MsgValidityRange = "Validity must be between 1 and 10080 minutes"
	MsgInvalidCode   = "Short code must be 3-10 alphanumeric characters"
	MsgCodeInUse     = "This short code is already in use"
)

var shortCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{3,10}$`)

var allowedSchemes = map[string]bool{
	"http":  true,
	"https": true,
}

// FieldErrors ошибки валидации: имя поля -> сообщение для пользователя
type FieldErrors map[string]string

const maxPort = 65535

// IsValidURL проверяет, что строка является абсолютным http/https URL.
// Пробелы по краям игнорируются, внутри строки недопустимы.
func IsValidURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
		return false
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}

	if !parsed.IsAbs() || !allowedSchemes[strings.ToLower(parsed.Scheme)] {
		return false
	}

	if parsed.Hostname() == "" {
		return false
	}

	if port := parsed.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n > maxPort {
			return false
		}
	}

	return true
}

// IsValidShortCode проверяет формат кастомного кода (3-10 латинских букв и цифр)
func IsValidShortCode(code string) bool {
	return shortCodePattern.MatchString(code)
}

// ValidateSubmission проверяет все поля заявки независимо друг от друга.
// existingCodes содержит коды, уже занятые в реестре и ранее в этом же пакете.
func ValidateSubmission(input models.Submission, existingCodes map[string]struct{}) FieldErrors {
	errs := FieldErrors{}

	if strings.TrimSpace(input.OriginalURL) == "" {
		errs[FieldOriginalURL] = MsgURLRequired
	} else if !IsValidURL(input.OriginalURL) {
		errs[FieldOriginalURL] = MsgInvalidURL
	}

	if input.ValidityMinutes < MinValidityMinutes || input.ValidityMinutes > MaxValidityMinutes {
		errs[FieldValidityMinutes] = MsgValidityRange
	}

	if input.CustomShortCode != "" {
		if !IsValidShortCode(input.CustomShortCode) {
			errs[FieldCustomShortCode] = MsgInvalidCode
		} else if _, taken := existingCodes[input.CustomShortCode]; taken {
			errs[FieldCustomShortCode] = MsgCodeInUse
		}
	}

	return errs
}
