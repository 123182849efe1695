package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tripledger/tripledger/internal/credstore"
)

var (
	// ErrIncompleteProfile indicates a profile missing id, email or display name.
	ErrIncompleteProfile = errors.New("session: incomplete user profile")
	// ErrMissingToken indicates an auth response without a bearer token.
	ErrMissingToken = errors.New("session: response carries no token")
	// ErrOAuthIncomplete indicates the backend did not finish the OAuth handshake in time.
	ErrOAuthIncomplete = errors.New("session: oauth sign-in could not be completed")
)

var validate = validator.New()

// Provider is the identity provider a user signed up with.
type Provider string

// Known providers.
const (
	ProviderLocal  Provider = "LOCAL"
	ProviderGoogle Provider = "GOOGLE"
)

// UnmarshalJSON accepts any casing; an empty provider means LOCAL.
func (p *Provider) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		raw = string(ProviderLocal)
	}
	*p = Provider(raw)
	return nil
}

// UserProfile is the identity of the signed-in user. ID is the identity key.
type UserProfile struct {
	ID          int64    `json:"id" validate:"gt=0"`
	Email       string   `json:"email" validate:"required,email"`
	DisplayName string   `json:"name" validate:"required"`
	AvatarURL   string   `json:"profilePictureUrl,omitempty"`
	Provider    Provider `json:"provider"`
}

// Validate reports ErrIncompleteProfile when a required field is missing.
func (u UserProfile) Validate() error {
	if err := validate.Struct(u); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("%w: %s", ErrIncompleteProfile, fieldErrs[0].Field())
		}
		return fmt.Errorf("%w: %v", ErrIncompleteProfile, err)
	}
	return nil
}

// Complete reports whether the profile has every required field.
func (u UserProfile) Complete() bool {
	return u.Validate() == nil
}

// DecodeProfile parses a profile blob and checks it is complete.
func DecodeProfile(data []byte) (UserProfile, error) {
	var u UserProfile
	if len(data) == 0 {
		return u, fmt.Errorf("%w: empty", ErrIncompleteProfile)
	}
	if err := json.Unmarshal(data, &u); err != nil {
		return u, fmt.Errorf("%w: %v", ErrIncompleteProfile, err)
	}
	if u.Provider == "" {
		u.Provider = ProviderLocal
	}
	return u, u.Validate()
}

// Session is an authenticated token and the user it belongs to.
type Session struct {
	Token string
	User  UserProfile
}

// Valid reports whether the session may be treated as authenticated: a user is only
// trusted together with a token.
func (s Session) Valid() bool {
	return s.Token != "" && s.User.Complete()
}

// Credentials serialises the session for a credstore.Store.
func (s Session) Credentials() (credstore.Credentials, error) {
	profile, err := json.Marshal(s.User)
	if err != nil {
		return credstore.Credentials{}, err
	}
	return credstore.Credentials{Token: s.Token, Profile: profile}, nil
}

type authPayload struct {
	UserProfile
	Token string `json:"token"`
}

// DecodeAuthPayload parses a login, register or OAuth lookup response body into a Session.
func DecodeAuthPayload(data []byte) (Session, error) {
	var payload authPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Session{}, fmt.Errorf("session: decode auth response: %w", err)
	}
	if payload.Token == "" {
		return Session{}, ErrMissingToken
	}
	if payload.Provider == "" {
		payload.Provider = ProviderLocal
	}
	if err := payload.UserProfile.Validate(); err != nil {
		return Session{}, err
	}
	return Session{Token: payload.Token, User: payload.UserProfile}, nil
}
