package service

import (
	"github.com/steveiliop56/tinyprovider/internal/model"
	"github.com/steveiliop56/tinyprovider/internal/utils"
)

// TokenGenerator draws opaque credentials. Implementations must be safe for concurrent use.
type TokenGenerator interface {
	Generate() (string, error)
}

type RandomTokenGenerator struct {
	Length int
}

func NewRandomTokenGenerator() *RandomTokenGenerator {
	return &RandomTokenGenerator{Length: model.TokenMaxLength}
}

func (g *RandomTokenGenerator) Generate() (string, error) {
	length := g.Length
	if length <= 0 || length > model.TokenMaxLength {
		length = model.TokenMaxLength
	}
	return utils.GetRandomString(length)
}
