package infra

import "testing"

func TestExtractMarker(t *testing.T) {
	query := `--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7
select token from integration_tokens where provider = $1;`

	marker, body, err := extractMarker(query)
	if err != nil {
		t.Fatalf("extractMarker returned error: %v", err)
	}
	if marker != "8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7" {
		t.Fatalf("marker = %q", marker)
	}
	if body != "select token from integration_tokens where provider = $1;" {
		t.Fatalf("body = %q", body)
	}
}

func TestExtractMarkerRejectsUnmarkedQuery(t *testing.T) {
	if _, _, err := extractMarker("select 1"); err == nil {
		t.Fatal("expected error for query without marker")
	}
}
