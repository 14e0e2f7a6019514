// Package jwt проверяет HS256-токены с именем, ролью и UID пользователя.
// Токены выпускает внешний сервис авторизации с тем же общим секретом.
package jwt

// Maker описывает разбор токенов.
type Maker interface {
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует Maker с общим секретом.
type MakerImpl struct {
	secretKey string
}

// NewJWTMaker создаёт MakerImpl на основе секретного ключа.
func NewJWTMaker(secretKey string) *MakerImpl {
	return &MakerImpl{secretKey: secretKey}
}
