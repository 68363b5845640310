package socks5

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	txsocks5 "github.com/txthinking/socks5"
	"golang.org/x/crypto/bcrypt"

	"github.com/die-net/socks5d/internal/testutil"
)

func TestStaticCredentials(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	creds := StaticCredentials{
		"alice": "secret",
		"bob":   string(hash),
		"empty": "",
	}

	tests := []struct {
		name     string
		user     string
		password string
		want     bool
	}{
		{name: "plain match", user: "alice", password: "secret", want: true},
		{name: "plain mismatch", user: "alice", password: "Secret"},
		{name: "plain prefix", user: "alice", password: "secre"},
		{name: "bcrypt match", user: "bob", password: "hunter2", want: true},
		{name: "bcrypt mismatch", user: "bob", password: "hunter3"},
		{name: "bcrypt hash as password", user: "bob", password: string(hash)},
		{name: "unknown user", user: "mallory", password: "secret"},
		{name: "empty password", user: "empty", password: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, creds.Valid(tt.user, tt.password))
		})
	}
}

func TestUserPassAuth(t *testing.T) {
	auth := NewUserPassAuth(StaticCredentials{"user": "pass"})
	require.Equal(t, MethodUserPass, auth.Method())

	tests := []struct {
		name       string
		user       string
		password   string
		wantStatus byte
		wantErr    error
	}{
		{name: "accepted", user: "user", password: "pass", wantStatus: txsocks5.UserPassStatusSuccess},
		{name: "wrong password", user: "user", password: "nope", wantStatus: txsocks5.UserPassStatusFailure, wantErr: ErrAuthFailed},
		{name: "unknown user", user: "other", password: "pass", wantStatus: txsocks5.UserPassStatusFailure, wantErr: ErrAuthFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := testutil.TCPPair(t)

			_, err := txsocks5.NewUserPassNegotiationRequest([]byte(tt.user), []byte(tt.password)).WriteTo(client)
			require.NoError(t, err)

			user, err := auth.Execute(context.Background(), server)
			rep, rerr := txsocks5.NewUserPassNegotiationReplyFrom(client)
			require.NoError(t, rerr)
			assert.Equal(t, tt.wantStatus, rep.Status)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.user, user)
		})
	}
}

func TestAuthenticateUserPassFailure(t *testing.T) {
	client, server := testutil.TCPPair(t)
	done := make(chan error, 1)
	go func() {
		_, _, err := NewIncomingConnection(server, NewUserPassAuth(StaticCredentials{"user": "pass"})).Authenticate(context.Background())
		done <- err
	}()

	err := ClientNegotiate(client, Auth{Username: "user", Password: "wrong"})
	require.ErrorIs(t, err, ErrAuthFailed)

	err = <-done
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "authenticate", se.Op)
	assert.Equal(t, KindProtocol, se.Kind)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Same(t, server, se.Conn)
}

func TestAuthenticateUserPassRequiresMethod(t *testing.T) {
	client, server := testutil.TCPPair(t)
	done := make(chan error, 1)
	go func() {
		_, _, err := NewIncomingConnection(server, NewUserPassAuth(StaticCredentials{})).Authenticate(context.Background())
		done <- err
	}()

	// A client without credentials only offers no-auth.
	err := ClientNegotiate(client, Auth{})
	var nm *NoAcceptableMethodError
	require.ErrorAs(t, err, &nm)
	assert.Equal(t, MethodNoAcceptable, nm.Chosen)

	err = <-done
	require.ErrorAs(t, err, &nm)
	assert.Equal(t, MethodUserPass, nm.Chosen)
	assert.Equal(t, []Method{MethodNoAuth}, nm.Methods)
}
