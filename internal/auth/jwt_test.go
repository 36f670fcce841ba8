package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("KS", RoleTeacher, "classtrack", "test-key", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := Parse(pair.AccessToken, "test-key", "classtrack")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "KS" || claims.Role != RoleTeacher {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := Parse(pair.AccessToken, "wrong-key", "classtrack"); err == nil {
		t.Error("wrong key must fail")
	}
	if _, err := Parse(pair.AccessToken, "test-key", "other-issuer"); err == nil {
		t.Error("issuer mismatch must fail")
	}
}

func TestParseExpired(t *testing.T) {
	pair, err := Issue("KS", RoleTeacher, "classtrack", "test-key", -time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "test-key", "classtrack"); err == nil {
		t.Error("expired token must fail")
	}
}
