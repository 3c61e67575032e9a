package alias

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Joey Votto", "JoeyVotto"},
		{"C.J. Cron", "CJCron"},
		{"José Ramírez", "JoseRamirez"},
		{"Jose Ramirez", "JoseRamirez"},
		{"  Yoenis   Céspedes ", "YoenisCespedes"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestDefaultTable_Versioned(t *testing.T) {
	tbl := DefaultTable()
	if tbl.Version < 1 {
		t.Fatalf("version=%d want>=1", tbl.Version)
	}
	if tbl.Aliases["CCron"] != "CJCron" {
		t.Fatalf("CCron alias=%q want=CJCron", tbl.Aliases["CCron"])
	}
}

func TestResolver_AliasedLookup(t *testing.T) {
	r := NewResolver(DefaultTable(), nil)
	names := map[string]int64{}
	r.Register(names, "C.J. Cron", 543257)

	// The substitution text drops the second initial.
	id, ok := r.Lookup(names, OutgoingName("Offensive Substitution: Pinch-runner Ben Revere replaces C. Cron."))
	if !ok || id != 543257 {
		t.Fatalf("lookup id=%d ok=%v want=543257", id, ok)
	}
}

func TestResolver_DiacriticsInsensitive(t *testing.T) {
	r := NewResolver(DefaultTable(), nil)
	names := map[string]int64{}
	r.Register(names, "José Ramírez", 608070)
	if id, ok := r.Lookup(names, "Jose Ramirez."); !ok || id != 608070 {
		t.Fatalf("lookup id=%d ok=%v want=608070", id, ok)
	}
}

func TestResolver_Miss(t *testing.T) {
	r := NewResolver(Table{Version: 1}, nil)
	names := map[string]int64{"JoeyVotto": 458015}
	if _, ok := r.Lookup(names, "Billy Hamilton"); ok {
		t.Fatalf("unexpected hit")
	}
}

func TestOutgoingName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Offensive Substitution: Pinch-runner Billy Hamilton replaces Joey Votto.", "Joey Votto."},
		{"Joey Votto", "Joey Votto"},
		{"Pinch-runner A replaces B replaces C", "C"},
	}
	for _, tc := range cases {
		if got := OutgoingName(tc.in); got != tc.want {
			t.Fatalf("OutgoingName(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestIncomingName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Offensive Substitution: Pinch-runner Billy Hamilton replaces Joey Votto.", "Billy Hamilton"},
		{"Jose Ramirez placed on 2nd base.", "Jose Ramirez"},
		{"Runner Placed On Base: Jose Ramirez starts the inning at 2nd base.", "Jose Ramirez"},
		{"Runner placed on second base.", ""},
		{"Offensive Substitution: Pinch-hitter Chris Young replaces Sandy Leon.", ""},
	}
	for _, tc := range cases {
		if got := IncomingName(tc.in); got != tc.want {
			t.Fatalf("IncomingName(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.json")
	if err := os.WriteFile(path, []byte(`{"version": 3, "aliases": {"A. Ellis": "A.J. Ellis"}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if tbl.Version != 3 || tbl.Aliases["AEllis"] != "AJEllis" {
		t.Fatalf("table=%+v", tbl)
	}

	if _, err := ParseTable([]byte(`{"aliases": {}}`)); err == nil {
		t.Fatalf("expected error for unversioned table")
	}
}
