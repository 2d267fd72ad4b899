package query

import (
	"encoding/json"
	"testing"
)

func TestResolveQueryType(t *testing.T) {
	tests := []struct {
		declared string
		sqlText  string
		want     string
	}{
		{declared: "", sqlText: "count users", want: "SELECT"},
		{declared: "insert", sqlText: "add a user named bob", want: "INSERT"},
		{declared: "UPDATE", sqlText: "select * from users", want: "SELECT"},
		{declared: "delete", sqlText: "  SeLeCt 1", want: "SELECT"},
		{declared: " update ", sqlText: "selection of users", want: "UPDATE"},
	}
	for _, tc := range tests {
		if got := ResolveQueryType(tc.declared, tc.sqlText); got != tc.want {
			t.Fatalf("ResolveQueryType(%q, %q) = %q, want %q", tc.declared, tc.sqlText, got, tc.want)
		}
	}
}

func TestReturnsRows(t *testing.T) {
	tests := map[string]bool{
		"SELECT 1":                             true,
		"  (select 1) union (select 2)":        true,
		"with x as (select 1) select * from x": true,
		"SHOW TABLES":                          true,
		"insert into t values (1)":             false,
		"UPDATE t SET a = 1":                   false,
		"":                                     false,
	}
	for sqlText, want := range tests {
		if got := ReturnsRows(sqlText); got != want {
			t.Fatalf("ReturnsRows(%q) = %v, want %v", sqlText, got, want)
		}
	}
}

func TestRowMarshalJSONKeepsColumnOrder(t *testing.T) {
	row := Row{Columns: []string{"z", "a", "m"}, Values: []any{int64(1), "two", nil}}
	encoded, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(encoded) != `{"z":1,"a":"two","m":null}` {
		t.Fatalf("encoded = %s", encoded)
	}
	if row.Map()["a"] != "two" {
		t.Fatalf("Map() = %#v", row.Map())
	}
}
