package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIssueVerifyRoundtrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	patientID := uuid.New()
	user := &User{
		ID:        uuid.New(),
		Role:      RolePatient,
		PatientID: &patientID,
	}

	token, err := issuer.Issue(user)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := issuer.Verify(token)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, RolePatient, claims.Role)
	if assert.NotNil(t, claims.PatientID) {
		assert.Equal(t, patientID, *claims.PatientID)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("secret-a", time.Hour)
	other := NewTokenIssuer("secret-b", time.Hour)

	token, err := issuer.Issue(&User{ID: uuid.New(), Role: RoleDoctor})
	assert.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute)

	token, err := issuer.Issue(&User{ID: uuid.New(), Role: RolePatient})
	assert.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	_, err := issuer.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RolePatient))
	assert.True(t, ValidRole(RolePharmacist))
	assert.False(t, ValidRole(Role("superuser")))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22!")
	assert.NoError(t, err)
	assert.NotEqual(t, "hunter22!", hash)

	assert.True(t, CheckPassword(hash, "hunter22!"))
	assert.False(t, CheckPassword(hash, "hunter23!"))
}
