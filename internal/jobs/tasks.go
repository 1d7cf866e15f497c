package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault cola por defecto para las tareas del worker.
	QueueDefault = "default"

	// TypeECFSubmit envía un comprobante a recepción de la DGII.
	TypeECFSubmit = "ecf:submit"
	// TypeECFPoll consulta el estado de un comprobante por trackId.
	TypeECFPoll = "ecf:poll"
	// TypeECFSweep barrido periódico: reenvía borradores huérfanos y
	// consulta los comprobantes en ENVIADO.
	TypeECFSweep = "ecf:sweep"
	// TypeContingencyScan barrido de comprobantes en contingencia:
	// reintenta los vigentes y escala los que agotaron el plazo.
	TypeContingencyScan = "ecf:contingencia:scan"
)

// ECFTaskPayload identifica el comprobante sobre el que opera la tarea.
type ECFTaskPayload struct {
	InvoiceID string `json:"invoice_id"`
}

// NewSubmitTask construye la tarea de envío de un comprobante.
func NewSubmitTask(invoiceID string) (*asynq.Task, error) {
	data, err := json.Marshal(ECFTaskPayload{InvoiceID: invoiceID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeECFSubmit, data), nil
}

// NewPollTask construye la tarea de consulta de estado de un comprobante.
func NewPollTask(invoiceID string) (*asynq.Task, error) {
	data, err := json.Marshal(ECFTaskPayload{InvoiceID: invoiceID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeECFPoll, data), nil
}

// NewSweepTask construye la tarea de barrido periódico (sin payload).
func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TypeECFSweep, nil)
}

// NewContingencyScanTask construye la tarea de barrido de contingencias.
func NewContingencyScanTask() *asynq.Task {
	return asynq.NewTask(TypeContingencyScan, nil)
}
