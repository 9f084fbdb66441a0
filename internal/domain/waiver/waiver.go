// Package waiver renders the consent-form content for delivery: the waiver
// email HTML and the flattened spreadsheet record. Both builders are pure and
// trust that their input already passed validation.
package waiver

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"boulderwall/internal/domain/submission"
)

// dateLayout is the pt-BR day/month/year presentation format.
const dateLayout = "02/01/2006"

// riskClausesMarkdown is the static legal text of the waiver. It is authored
// as Markdown and rendered once at startup; it never contains user data.
const riskClausesMarkdown = `- Tenho 18 anos ou mais, sendo legalmente responsável por minhas decisões e assumindo os riscos envolvidos na prática da Escalada Esportiva – Modalidade Boulder.
- Estou ciente de que a escalada no muro de boulder do centro esportivo da Prefeitura de Campos do Jordão envolve riscos inerentes, incluindo, mas não se limitando a:
  - Quedas e impactos contra o solo ou paredes;
  - Lesões como torções, contusões e fraturas;
  - Riscos associados ao uso inadequado da estrutura ou falta de experiência.
- Estou ciente de que não há supervisão profissional fornecida pela Prefeitura ou qualquer outro órgão público, sendo minha segurança de inteira responsabilidade.
- Reconheço que o muro de boulder recebe manutenção pela comunidade local de escaladores e que não há garantias formais quanto ao seu estado de conservação ou adequação para uso seguro.`

// guardianClauseText is the additional responsibility declaration appended
// when the participant registers minors.
const guardianClauseText = "Como responsável legal, assumo total responsabilidade pela segurança do(s) menor(es) durante a prática da Escalada Esportiva e me comprometo a supervisionar em tempo integral durante toda a atividade."

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// riskClausesHTML caches the rendered static clause block.
var riskClausesHTML = mustRenderMarkdown(riskClausesMarkdown)

func mustRenderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		// Static input; conversion cannot fail at runtime, fall back to escaped text.
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// emailTemplate is the waiver email body. All participant fields pass through
// html/template's contextual escaping; the signature URI is validated upstream
// to be a data:image/ URI before it is marked as a safe URL.
var emailTemplate = template.Must(template.New("waiver_email").Parse(`<h1>Termo de Consentimento - Escalada Boulder</h1>
<p>Data do registro: {{.RegisteredAt}}</p>

<h2>Dados do Participante</h2>
<ul>
  <li>Nome: {{.FullName}}</li>
  <li>Email: {{.Email}}</li>
  <li>Data de Nascimento: {{.BirthDate}}</li>
  <li>Documento: {{.IDDocument}}</li>
  <li>Telefone para emergência: {{.EmergencyPhone}}</li>
</ul>

<h2>Termo de Consentimento e Isenção de Responsabilidade</h2>
<p>Eu, {{.FullName}}, portador(a) do documento de identificação {{.IDDocument}}, declaro que:</p>
{{.RiskClauses}}
{{if .RegisterMinors}}
<h2>Termo de Responsabilidade para Menor(es)</h2>
<p>Nome(s) do(s) filho(s):</p>
<p>{{.MinorNames}}</p>
<p>{{.GuardianClause}}</p>
{{end}}
<h2>Assinatura Digital</h2>
<img src="{{.SignatureURI}}" alt="Assinatura Digital" style="max-width: 100%; border: 1px solid #ccc; margin-top: 20px;" />
`))

type emailData struct {
	RegisteredAt   string
	FullName       string
	Email          string
	BirthDate      string
	IDDocument     string
	EmergencyPhone string
	RegisterMinors bool
	MinorNames     string
	GuardianClause string
	RiskClauses    template.HTML
	SignatureURI   template.URL
}

// RenderEmailHTML produces the waiver email body for a submission.
// PRE: s passed Validate and CanSubmit; registeredAt is the submission time
// POST: Returns HTML with every user-supplied field escaped
func RenderEmailHTML(s submission.Submission, registeredAt time.Time) (string, error) {
	data := emailData{
		RegisteredAt:   registeredAt.Format(dateLayout),
		FullName:       s.FullName,
		Email:          s.Email,
		BirthDate:      s.BirthDate.Format(dateLayout),
		IDDocument:     s.IDDocument,
		EmergencyPhone: s.EmergencyPhone,
		RegisterMinors: s.RegisterMinors,
		MinorNames:     s.MinorNames,
		GuardianClause: guardianClauseText,
		RiskClauses:    riskClausesHTML,
		// Safe: Validate requires a data:image/ prefix on the signature URI.
		SignatureURI: template.URL(s.SignatureImage),
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render waiver email: %w", err)
	}
	return buf.String(), nil
}

// SheetRecord is the flattened payload posted to the spreadsheet web-hook.
type SheetRecord struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// BuildSheetRecord flattens a submission into the web-hook's record shape.
// The signature data URI is deliberately left out of the record.
// PRE: s passed Validate
// POST: Message carries birth date (dd/mm/yyyy), document, phone and minors
func BuildSheetRecord(s submission.Submission) SheetRecord {
	var b strings.Builder
	fmt.Fprintf(&b, "Data de Nascimento: %s\n", s.BirthDate.Format(dateLayout))
	fmt.Fprintf(&b, "Documento: %s\n", s.IDDocument)
	fmt.Fprintf(&b, "Telefone para emergência: %s", s.EmergencyPhone)
	if s.RegisterMinors {
		fmt.Fprintf(&b, "\nFilho(s): %s", s.MinorNames)
	}

	return SheetRecord{
		Name:    s.FullName,
		Email:   s.Email,
		Message: b.String(),
	}
}

// ParticipantSubject is the subject line of the participant's waiver email.
const ParticipantSubject = "Seu Termo de Consentimento - Escalada Boulder"

// AdminSubject builds the subject line for administrator notifications.
func AdminSubject(fullName string) string {
	return "Novo Termo de Consentimento - " + fullName
}
