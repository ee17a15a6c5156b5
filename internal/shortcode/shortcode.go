package shortcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sqids/sqids-go"
)

// Стратегии генерации кода
const (
	KindNanoID = "nanoid"
	KindSqids  = "sqids"
)

const (
	// DefaultLength длина сгенерированного кода по умолчанию
	DefaultLength = 6
	// Alphabet строчные латинские буквы и цифры (base36)
	Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

	minLength = 3
	maxLength = 10
)

var ErrInvalidLength = errors.New("short code length must be between 3 and 10")

// Generator выдаёт случайный короткий код. Уникальность не гарантируется,
// проверка коллизий остаётся за вызывающей стороной.
type Generator interface {
	Generate() (string, error)
}

// New создаёт генератор выбранной стратегии
func New(kind string, length int) (Generator, error) {
	if length == 0 {
		length = DefaultLength
	}
	if length < minLength || length > maxLength {
		return nil, ErrInvalidLength
	}

	switch kind {
	case "", KindNanoID:
		return NewNanoID(length), nil
	case KindSqids:
		return NewSqids(length)
	default:
		return nil, fmt.Errorf("unknown short code generator: %q", kind)
	}
}

// NanoID генератор на основе nanoid с base36 алфавитом
type NanoID struct {
	length int
}

func NewNanoID(length int) *NanoID {
	return &NanoID{length: length}
}

func (g *NanoID) Generate() (string, error) {
	code, err := gonanoid.Generate(Alphabet, g.length)
	if err != nil {
		return "", fmt.Errorf("failed to generate nanoid: %w", err)
	}
	return code, nil
}

// Sqids кодирует случайное число через sqids. Верхняя граница числа
// подобрана так, чтобы код не выходил за заданную длину.
type Sqids struct {
	sqids *sqids.Sqids
	limit *big.Int
}

func NewSqids(length int) (*Sqids, error) {
	s, err := sqids.New(sqids.Options{
		Alphabet:  Alphabet,
		MinLength: uint8(length),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init sqids: %w", err)
	}

	// Первый символ sqids занят префиксом, остальные кодируют число в base35
	limit := new(big.Int).Exp(big.NewInt(int64(len(Alphabet)-1)), big.NewInt(int64(length-1)), nil)

	return &Sqids{sqids: s, limit: limit}, nil
}

func (g *Sqids) Generate() (string, error) {
	num, err := rand.Int(rand.Reader, g.limit)
	if err != nil {
		return "", fmt.Errorf("failed to draw random number: %w", err)
	}

	code, err := g.sqids.Encode([]uint64{num.Uint64()})
	if err != nil {
		return "", fmt.Errorf("failed to encode sqids: %w", err)
	}
	return code, nil
}
