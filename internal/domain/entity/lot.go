package entity

// LotDetails campos descriptivos de negocio de un lote. El ingreso (INBOUND) es la fuente autoritativa.
type LotDetails struct {
	CustomerName string `json:"customer_name"`
	Customs      string `json:"customs,omitempty"`
	ExportMode   string `json:"export_mode,omitempty"`
	ServiceStaff string `json:"service_staff,omitempty"`
}

// SameDescriptive compara customs, export mode y service staff (sin el cliente, que se audita aparte).
func (d LotDetails) SameDescriptive(o LotDetails) bool {
	return d.Customs == o.Customs && d.ExportMode == o.ExportMode && d.ServiceStaff == o.ServiceStaff
}

// HasDescriptive indica si hay al menos un campo descriptivo informado.
func (d LotDetails) HasDescriptive() bool {
	return d.Customs != "" || d.ExportMode != "" || d.ServiceStaff != ""
}

// WithDescriptiveFrom copia customs, export mode y service staff desde src conservando el cliente.
func (d LotDetails) WithDescriptiveFrom(src LotDetails) LotDetails {
	d.Customs = src.Customs
	d.ExportMode = src.ExportMode
	d.ServiceStaff = src.ServiceStaff
	return d
}

// FillFrom completa con src solo los campos vacíos de d.
func (d LotDetails) FillFrom(src LotDetails) LotDetails {
	if d.CustomerName == "" {
		d.CustomerName = src.CustomerName
	}
	if d.Customs == "" {
		d.Customs = src.Customs
	}
	if d.ExportMode == "" {
		d.ExportMode = src.ExportMode
	}
	if d.ServiceStaff == "" {
		d.ServiceStaff = src.ServiceStaff
	}
	return d
}
