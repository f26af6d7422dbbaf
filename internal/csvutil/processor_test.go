package csvutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/lepinkainen/crate/internal/testutil"
)

type person struct {
	Name string
	Age  string
	City string
}

func parsePerson(row Row) (person, error) {
	if row.Get("name") == "" {
		return person{}, errors.New("name is required")
	}
	return person{Name: row.Get("name"), Age: row.Get("age"), City: row.Get("city")}, nil
}

func TestProcessFile(t *testing.T) {
	env := testutil.NewTestEnv(t)
	csvPath := env.WriteFileString("test.csv", `Name,Age,Town
Alice,30,NYC
Bob,25,LA

Charlie,35,Chicago
`)

	opts := ProcessorOptions{Aliases: map[string]string{"town": "city"}}
	people, err := ProcessFile(csvPath, parsePerson, opts)
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	expected := []person{
		{"Alice", "30", "NYC"},
		{"Bob", "25", "LA"},
		{"Charlie", "35", "Chicago"},
	}
	if len(people) != len(expected) {
		t.Fatalf("expected %d people, got %d", len(expected), len(people))
	}
	for i, p := range people {
		if p != expected[i] {
			t.Errorf("people[%d] = %v, want %v", i, p, expected[i])
		}
	}
}

func TestProcessFile_EmptyFile(t *testing.T) {
	env := testutil.NewTestEnv(t)
	csvPath := env.WriteFileString("empty.csv", "")

	if _, err := ProcessFile(csvPath, parsePerson, ProcessorOptions{}); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestProcessFile_MissingFile(t *testing.T) {
	env := testutil.NewTestEnv(t)
	if _, err := ProcessFile(env.Path("nope.csv"), parsePerson, ProcessorOptions{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestProcessCSV_RequiredColumn(t *testing.T) {
	_, err := ProcessCSV(strings.NewReader("age,city\n30,NYC\n"), parsePerson, ProcessorOptions{Required: []string{"name"}})
	if err == nil || !strings.Contains(err.Error(), `"name"`) {
		t.Fatalf("expected missing column error, got %v", err)
	}
}

func TestProcessCSV_InvalidRecords(t *testing.T) {
	input := "name,age\n,30\nBob,25\n"

	if _, err := ProcessCSV(strings.NewReader(input), parsePerson, ProcessorOptions{}); err == nil {
		t.Fatal("expected error for invalid record")
	} else if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error should name the line, got %v", err)
	}

	people, err := ProcessCSV(strings.NewReader(input), parsePerson, ProcessorOptions{SkipInvalid: true})
	if err != nil {
		t.Fatalf("ProcessCSV() error = %v", err)
	}
	if len(people) != 1 || people[0].Name != "Bob" {
		t.Errorf("unexpected result %v", people)
	}
}

func TestProcessCSV_BOMHeaderAndRaggedRows(t *testing.T) {
	input := "\ufeffName,Age,City\nAlice,30\n"

	people, err := ProcessCSV(strings.NewReader(input), parsePerson, ProcessorOptions{})
	if err != nil {
		t.Fatalf("ProcessCSV() error = %v", err)
	}
	if len(people) != 1 || people[0] != (person{Name: "Alice", Age: "30"}) {
		t.Errorf("unexpected result %v", people)
	}
}
