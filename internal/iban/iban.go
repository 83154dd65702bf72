// Package iban генерирует и проверяет IBAN по ISO 13616 с контрольной
// суммой ISO 7064 MOD97-10.
package iban

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode"
)

const (
	minLength = 5
	maxLength = 34
	chunkSize = 7
)

var (
	ErrInvalidParams    = errors.New("iban: некорректные параметры генерации")
	ErrInvalidCharacter = errors.New("iban: недопустимый символ")
)

// Params описывает банк, для которого генерируются номера.
type Params struct {
	CountryCode   string
	BankCode      string
	BranchCode    string
	AccountLength int
}

func (p Params) validate() error {
	if len(p.CountryCode) != 2 || !isUpperLetters(strings.ToUpper(p.CountryCode)) {
		return fmt.Errorf("%w: код страны %q", ErrInvalidParams, p.CountryCode)
	}
	if p.AccountLength <= 0 {
		return fmt.Errorf("%w: длина номера счёта %d", ErrInvalidParams, p.AccountLength)
	}
	if !isAlphanumeric(p.BankCode) || !isAlphanumeric(p.BranchCode) {
		return fmt.Errorf("%w: код банка или отделения", ErrInvalidParams)
	}
	if strings.EqualFold(p.CountryCode, "FR") && (!isDigits(p.BankCode) || !isDigits(p.BranchCode)) {
		return fmt.Errorf("%w: для FR коды банка и отделения должны быть цифровыми", ErrInvalidParams)
	}
	return nil
}

// Generate собирает BBAN из кодов банка, отделения и случайного номера счёта
// и дописывает контрольные цифры так, что Validate всегда возвращает true.
func Generate(p Params) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	country := strings.ToUpper(p.CountryCode)

	account, err := randomDigits(p.AccountLength)
	if err != nil {
		return "", fmt.Errorf("iban: ошибка генерации случайного номера: %w", err)
	}

	bban := strings.ToUpper(p.BankCode + p.BranchCode + account)
	if country == "FR" {
		bban += ribKey(p.BankCode, p.BranchCode, account)
	}
	if len(bban)+4 > maxLength {
		return "", fmt.Errorf("%w: слишком длинный BBAN", ErrInvalidParams)
	}

	check, err := CheckDigits(country, bban)
	if err != nil {
		return "", err
	}
	return country + check + bban, nil
}

// CheckDigits считает две контрольные цифры для пары страна + BBAN.
func CheckDigits(country, bban string) (string, error) {
	numeric, err := toNumeric(bban + country + "00")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d", 98-mod97(numeric)), nil
}

// Validate нормализует строку и проверяет, что остаток MOD97 равен 1.
func Validate(s string) bool {
	value := Normalize(s)
	if len(value) < minLength || len(value) > maxLength {
		return false
	}
	if !isAlphanumeric(value) {
		return false
	}
	if !isUpperLetters(value[:2]) || !isDigits(value[2:4]) {
		return false
	}
	numeric, err := toNumeric(value[4:] + value[:4])
	if err != nil {
		return false
	}
	return mod97(numeric) == 1
}

// Normalize убирает все пробельные символы и переводит в верхний регистр.
func Normalize(s string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s))
}

// Format разбивает IBAN на группы по четыре символа для отображения.
func Format(s string) string {
	value := Normalize(s)
	var b strings.Builder
	for i, r := range value {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// toNumeric заменяет буквы A–Z на числа 10–35.
func toNumeric(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteString(strconv.Itoa(int(r) - 55))
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidCharacter, r)
		}
	}
	return b.String(), nil
}

// mod97 сворачивает длинное число по частям, чтобы не переполнить int.
func mod97(digits string) int {
	remainder := 0
	for i := 0; i < len(digits); i += chunkSize {
		end := i + chunkSize
		if end > len(digits) {
			end = len(digits)
		}
		n, _ := strconv.Atoi(strconv.Itoa(remainder) + digits[i:end])
		remainder = n % 97
	}
	return remainder
}

// ribKey: национальный ключ RIB: 97 - ((89*банк + 15*отделение + 3*счёт) mod 97).
func ribKey(bank, branch, account string) string {
	sum := 89*mod97(bank) + 15*mod97(branch) + 3*mod97(account)
	return fmt.Sprintf("%02d", 97-sum%97)
}

func randomDigits(length int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	digits := n.String()
	if len(digits) < length {
		digits = strings.Repeat("0", length-len(digits)) + digits
	}
	return digits, nil
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9') && !(r >= 'A' && r <= 'Z') && !(r >= 'a' && r <= 'z') {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isUpperLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return s != ""
}
