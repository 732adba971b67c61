// Package e2e provides end-to-end tests over a generated legal case corpus.
package e2e

import (
	"fmt"
	"strings"

	"github.com/hyperjump/mizan/internal/models"
)

// QueryTestCase defines a keyword query and the case that must rank first for it.
type QueryTestCase struct {
	Query          string
	ExpectedCaseID string
	Description    string
}

// Corpus holds case records and keyword query test cases for E2E tests.
type Corpus struct {
	Cases        []models.CaseRecord
	TestCases    []QueryTestCase
	TotalCases   int
	TotalQueries int
}

// topics are the subject terms; each appears in exactly one case of a corpus no
// larger than len(topics), so a keyword query for it has one right answer.
var topics = []struct {
	term string
	law  string
}{
	{"الميراث", "الأحوال الشخصية"},
	{"الطلاق", "الأحوال الشخصية"},
	{"الحضانة", "الأحوال الشخصية"},
	{"النفقة", "الأحوال الشخصية"},
	{"الإيجار", "المعاملات المدنية"},
	{"الرهن", "المعاملات المدنية"},
	{"الشفعة", "المعاملات المدنية"},
	{"الكفالة", "المعاملات المدنية"},
	{"الوقف", "الأوقاف"},
	{"التحكيم", "الإجراءات المدنية"},
	{"الإفلاس", "التجارة"},
	{"الشيكات", "التجارة"},
	{"الجمارك", "الجمارك"},
	{"الضرائب", "الضريبة"},
	{"المخدرات", "مكافحة المخدرات"},
	{"السرقة", "العقوبات"},
	{"التزوير", "العقوبات"},
	{"الرشوة", "العقوبات"},
	{"الاحتيال", "العقوبات"},
	{"القذف", "العقوبات"},
}

// BuildCorpus returns a corpus of n cases. Every case carries a distinct subject term
// in its title, keywords and description.
func BuildCorpus(n int) *Corpus {
	cases := buildCases(n)
	queries := buildQueryTestCases(cases)
	return &Corpus{
		Cases:        cases,
		TestCases:    queries,
		TotalCases:   len(cases),
		TotalQueries: len(queries),
	}
}

func buildCases(n int) []models.CaseRecord {
	out := make([]models.CaseRecord, 0, n)
	for i := 0; i < n; i++ {
		t := topics[i%len(topics)]
		out = append(out, models.CaseRecord{
			CaseID:   fmt.Sprintf("case-%03d", i+1),
			Title:    fmt.Sprintf("دعوى %s رقم %d", t.term, i+1),
			Keywords: t.term,
			Description: fmt.Sprintf(
				"قررت المحكمة في دعوى %s تطبيق المادة %d من قانون %s وإلزام المدعى عليه بالمصاريف.",
				t.term, 10+i, t.law),
		})
	}
	return out
}

func buildQueryTestCases(cases []models.CaseRecord) []QueryTestCase {
	// A term shared by several cases has no single expected answer.
	count := make(map[string]int)
	for _, c := range cases {
		count[c.Keywords]++
	}
	var out []QueryTestCase
	for _, c := range cases {
		if count[c.Keywords] != 1 {
			continue
		}
		out = append(out, QueryTestCase{
			Query:          c.Keywords,
			ExpectedCaseID: c.CaseID,
			Description:    fmt.Sprintf("keyword %s finds %s", c.Keywords, c.CaseID),
		})
	}
	return out
}

// QAPairs returns one question per case that names its subject term.
func (c *Corpus) QAPairs() []models.QAPair {
	out := make([]models.QAPair, len(c.Cases))
	for i, rec := range c.Cases {
		out[i] = models.QAPair{
			Question: "ما هي المواد القانونية في دعوى " + rec.Keywords,
			CaseID:   rec.CaseID,
		}
	}
	return out
}

func containsTerm(rec models.CaseRecord, term string) bool {
	return strings.Contains(rec.Title, term) || strings.Contains(rec.Description, term)
}
