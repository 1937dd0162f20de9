package domain

// DefaultQuestions is the built-in battery asked about a tax-authority notice
// when the caller supplies no questions.
var DefaultQuestions = QuestionSet{
	"¿El documento es sobre una solicitud de devolución de Saldo a Favor?",
	"¿El documento es sobre un requerimiento?",
	"¿El documento es sobre el impuesto sobre la renta?",
	"¿El documento es sobre el impuesto al valor agregado?",
	"¿El documento es sobre el impuesto sobre producción y servicios?",
	"¿El documento es sobre retenciones de ISR?",
	"¿El documento es sobre retenciones de IVA?",
	"¿A que periodo hace referencia la solicitud de información?",
	"¿Qué importe está sujeto a aclaración?",
}
