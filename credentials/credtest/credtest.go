// Package credtest builds throwaway service-account key documents for tests.
package credtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"testing"

	"loyaltywallet/credentials"
)

// KeyDocument returns a JSON key document with a freshly generated RSA key.
func KeyDocument(t testing.TB, email string) ([]byte, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal pkcs8: %v", err)
	}
	doc := map[string]string{
		"type":           "service_account",
		"client_email":   email,
		"private_key_id": "test-key-id",
		"private_key":    string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal key document: %v", err)
	}
	return raw, key
}

// Credential returns a parsed credential backed by a generated key.
func Credential(t testing.TB, email string) *credentials.ServiceCredential {
	t.Helper()
	raw, _ := KeyDocument(t, email)
	cred, err := credentials.Parse(raw)
	if err != nil {
		t.Fatalf("parse credential: %v", err)
	}
	return cred
}
