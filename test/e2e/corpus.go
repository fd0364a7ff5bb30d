// Package e2e provides end-to-end tests with a regulatory corpus and multiple queries.
package e2e

import (
	"fmt"
	"strings"

	"github.com/hyperjump/regqa/internal/models"
)

// E2EDocument is one article of the E2E corpus.
type E2EDocument struct {
	ID      string
	Title   string
	Content string
}

// QueryTestCase defines a query and the document ID(s) one of which must
// appear in the retrieved context.
type QueryTestCase struct {
	Query          string
	ExpectedDocIDs []string
	Description    string
}

// Corpus holds documents and query test cases for E2E tests.
type Corpus struct {
	Documents    []E2EDocument
	TestCases    []QueryTestCase
	TotalDocs    int
	TotalQueries int
}

// topic is an article template. phrase is unique to the article and is what
// its query test case asks for.
type topic struct {
	title  string
	phrase string
	body   string
}

var topics = []topic{
	{"Subject matter", "minimum harmonisation baseline", "This Directive lays down measures that aim to achieve a high common level of cybersecurity across the Union. The minimum harmonisation baseline allows Member States to adopt provisions ensuring a higher level."},
	{"Scope", "medium-sized enterprises threshold", "This Directive applies to public or private entities of a type referred to in Annex I or II which qualify as medium-sized enterprises threshold or exceed the ceilings for medium-sized enterprises."},
	{"Essential and important entities", "quarterly entity classification", "Member States shall establish a list of essential and important entities. A quarterly entity classification review keeps the list current."},
	{"National cybersecurity strategy", "strategic policy objectives", "Each Member State shall adopt a national cybersecurity strategy that provides for the strategic policy objectives and the resources required to achieve them."},
	{"Competent authorities", "single point of contact", "Each Member State shall designate or establish one or more competent authorities responsible for cybersecurity and a single point of contact exercising a liaison function."},
	{"Coordinated vulnerability disclosure", "trusted intermediary coordinator", "Each Member State shall designate one of its CSIRTs as a coordinator acting as a trusted intermediary coordinator between the reporting natural persons and the manufacturer."},
	{"European vulnerability database", "publicly accessible vulnerability registry", "ENISA shall develop and maintain a publicly accessible vulnerability registry covering vulnerabilities in ICT products and services."},
	{"Crisis management", "large-scale incident plan", "Each Member State shall designate authorities responsible for the management of large-scale cybersecurity incidents and adopt a national large-scale incident plan."},
	{"CSIRT network", "operational cooperation among teams", "A network of national CSIRTs is established in order to contribute to confidence building and to promote swift and effective operational cooperation among teams."},
	{"Peer reviews", "voluntary mutual learning", "The Cooperation Group shall establish the methodology for peer reviews, which are based on voluntary mutual learning between Member States."},
	{"Governance", "management body accountability", "Member States shall ensure that the management bodies of essential and important entities approve the measures, and management body accountability applies for infringements."},
	{"Cybersecurity risk-management measures", "multi-factor authentication solutions", "Measures shall include policies on risk analysis, incident handling, business continuity, and the use of multi-factor authentication solutions or continuous authentication."},
	{"Supply chain security", "direct suppliers and service providers", "Measures shall address supply chain security, including security-related aspects concerning the relationships between each entity and its direct suppliers and service providers."},
	{"Reporting obligations", "early warning within twenty-four hours", "Essential and important entities shall submit an early warning within twenty-four hours of becoming aware of the significant incident."},
	{"Incident notification", "final report within one month", "Entities shall submit an incident notification within 72 hours, followed by a final report within one month after the submission of the notification."},
	{"Use of European certification schemes", "certified ICT processes", "Member States may require entities to use particular ICT products, services and certified ICT processes under European cybersecurity certification schemes."},
	{"Standardisation", "European and international standards", "Member States shall encourage the use of European and international standards and technical specifications relevant to the security of network and information systems."},
	{"Database of domain name registration data", "accurate registration data", "TLD name registries and entities providing domain name registration services shall collect and maintain accurate registration data in a dedicated database."},
	{"Cybersecurity information-sharing arrangements", "threat intelligence exchange", "Entities may exchange relevant cybersecurity information among themselves, including threat intelligence exchange on indicators of compromise and tactics."},
	{"Supervisory and enforcement measures", "on-site inspections and off-site supervision", "Competent authorities shall have the power to subject entities to on-site inspections and off-site supervision, including random checks by trained professionals."},
	{"Administrative fines", "two per cent of turnover", "Essential entities may face administrative fines of a maximum of at least EUR 10 000 000 or of a maximum of at least two per cent of turnover worldwide."},
	{"Penalties", "effective proportionate dissuasive", "Member States shall lay down rules on penalties applicable to infringements; the penalties provided for shall be effective proportionate dissuasive."},
	{"Mutual assistance", "cross-border supervisory cooperation", "Where an entity provides services in more than one Member State, the competent authorities concerned shall engage in cross-border supervisory cooperation and assist each other."},
	{"Transposition", "adopt and publish provisions", "Member States shall adopt and publish provisions necessary to comply with this Directive and shall apply those measures from the date of application."},
}

// BuildCorpus returns one document per article template, each followed by
// shared recital text so that documents span more than one chunk.
func BuildCorpus() *Corpus {
	docs := buildDocuments()
	cases := buildQueryTestCases(docs)
	return &Corpus{
		Documents:    docs,
		TestCases:    cases,
		TotalDocs:    len(docs),
		TotalQueries: len(cases),
	}
}

const recital = "Recital. This Article shall be read in conjunction with the obligations laid down elsewhere in this Directive and with the applicable Union law on the protection of personal data."

func buildDocuments() []E2EDocument {
	out := make([]E2EDocument, 0, len(topics))
	for i, t := range topics {
		out = append(out, E2EDocument{
			ID:      fmt.Sprintf("article-%02d", i+1),
			Title:   fmt.Sprintf("Article %d %s", i+1, t.title),
			Content: t.body + "\n\n" + recital,
		})
	}
	return out
}

func buildQueryTestCases(docs []E2EDocument) []QueryTestCase {
	var cases []QueryTestCase
	for i, t := range topics {
		if i >= len(docs) {
			break
		}
		d := docs[i]
		if !containsPhrase(d, t.phrase) {
			continue
		}
		cases = append(cases, QueryTestCase{
			Query:          t.phrase,
			ExpectedDocIDs: []string{d.ID},
			Description:    fmt.Sprintf("query %q should return %s", t.phrase, d.ID),
		})
	}
	return cases
}

func containsPhrase(d E2EDocument, phrase string) bool {
	return strings.Contains(d.Title, phrase) || strings.Contains(d.Content, phrase)
}

// Text is the full text of a document as written to a file.
func (d E2EDocument) Text() string {
	return d.Title + "\n\n" + d.Content
}

// RawDocuments converts the corpus documents to loader output, using the
// document ID as the source.
func (c *Corpus) RawDocuments() []models.RawDocument {
	out := make([]models.RawDocument, len(c.Documents))
	for i, d := range c.Documents {
		out[i] = models.RawDocument{
			Text: d.Text(),
			Metadata: map[string]any{
				models.MetaSource: d.ID,
				models.MetaTitle:  d.Title,
			},
		}
	}
	return out
}
