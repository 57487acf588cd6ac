package meetings

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignatureTTL is how long a Meeting SDK join signature stays valid.
const SignatureTTL = 2 * time.Hour

var ErrSDKNotConfigured = errors.New("meeting SDK key and secret are required")

// SDKClaims is the Zoom Meeting SDK signature payload.
type SDKClaims struct {
	SDKKey        string `json:"sdkKey"`
	AppKey        string `json:"appKey"`
	MeetingNumber string `json:"mn"`
	Role          int    `json:"role"`
	TokenExp      int64  `json:"tokenExp"`
	jwt.RegisteredClaims
}

// SDKSigner issues join signatures for the Zoom Meeting SDK.
type SDKSigner struct {
	key    string
	secret []byte
	now    func() time.Time
}

// NewSDKSigner creates a signer for the given SDK credentials.
func NewSDKSigner(key, secret string) *SDKSigner {
	return &SDKSigner{key: key, secret: []byte(secret), now: time.Now}
}

// Sign returns an HS256 JWT allowing role to join meetingNumber for two hours.
func (s *SDKSigner) Sign(meetingNumber string, role int) (string, error) {
	if s.key == "" || len(s.secret) == 0 {
		return "", ErrSDKNotConfigured
	}
	now := s.now()
	exp := now.Add(SignatureTTL)
	claims := SDKClaims{
		SDKKey:        s.key,
		AppKey:        s.key,
		MeetingNumber: meetingNumber,
		Role:          role,
		TokenExp:      exp.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			// Backdated to tolerate clock skew on the client.
			IssuedAt:  jwt.NewNumericDate(now.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
