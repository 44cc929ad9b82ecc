package domain

import "encoding/json"

// NRChecklist is a seeded Brazilian regulatory (Norma Regulamentadora)
// checklist template. Read-only after seeding.
type NRChecklist struct {
	ID       int32           `json:"id"`
	NRNumber string          `json:"nrNumber"`
	NRName   string          `json:"nrName"`
	Category string          `json:"category"`
	Items    json.RawMessage `json:"items"`
}

// ChecklistItem is one entry of an NR checklist template.
type ChecklistItem struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Required bool   `json:"required"`
}

type seedChecklist struct {
	NRNumber string
	NRName   string
	Category string
	Items    []ChecklistItem
}

// SeedChecklists returns the NR checklist templates inserted on first boot.
// Like plan seeding, this is insert-if-empty: existing rows are never touched.
func SeedChecklists() []NRChecklist {
	seeds := []seedChecklist{
		{
			NRNumber: "NR-6",
			NRName:   "Equipamento de Proteção Individual",
			Category: "EPI",
			Items: []ChecklistItem{
				{ID: "nr6-1", Text: "EPIs disponíveis e em bom estado", Required: true},
				{ID: "nr6-2", Text: "CA (Certificado de Aprovação) válido", Required: true},
				{ID: "nr6-3", Text: "Trabalhadores treinados no uso de EPIs", Required: true},
				{ID: "nr6-4", Text: "Registro de entrega de EPIs", Required: true},
				{ID: "nr6-5", Text: "Higienização adequada dos EPIs", Required: false},
			},
		},
		{
			NRNumber: "NR-10",
			NRName:   "Segurança em Instalações e Serviços em Eletricidade",
			Category: "Eletricidade",
			Items: []ChecklistItem{
				{ID: "nr10-1", Text: "Profissionais habilitados e autorizados", Required: true},
				{ID: "nr10-2", Text: "Prontuário de instalações elétricas atualizado", Required: true},
				{ID: "nr10-3", Text: "Esquemas unifilares atualizados", Required: true},
				{ID: "nr10-4", Text: "Procedimentos de trabalho documentados", Required: true},
				{ID: "nr10-5", Text: "Sinalização de segurança adequada", Required: true},
			},
		},
		{
			NRNumber: "NR-12",
			NRName:   "Segurança no Trabalho em Máquinas e Equipamentos",
			Category: "Máquinas",
			Items: []ChecklistItem{
				{ID: "nr12-1", Text: "Proteções fixas e móveis instaladas", Required: true},
				{ID: "nr12-2", Text: "Dispositivos de parada de emergência funcionando", Required: true},
				{ID: "nr12-3", Text: "Manual de instruções disponível", Required: true},
				{ID: "nr12-4", Text: "Sinalização de segurança nas máquinas", Required: true},
				{ID: "nr12-5", Text: "Manutenção preventiva em dia", Required: true},
			},
		},
		{
			NRNumber: "NR-35",
			NRName:   "Trabalho em Altura",
			Category: "Altura",
			Items: []ChecklistItem{
				{ID: "nr35-1", Text: "Trabalhadores com treinamento válido", Required: true},
				{ID: "nr35-2", Text: "Análise de Risco realizada", Required: true},
				{ID: "nr35-3", Text: "Permissão de Trabalho emitida", Required: true},
				{ID: "nr35-4", Text: "Equipamentos de proteção contra quedas", Required: true},
				{ID: "nr35-5", Text: "Ponto de ancoragem adequado", Required: true},
			},
		},
	}

	checklists := make([]NRChecklist, 0, len(seeds))
	for _, s := range seeds {
		items, err := json.Marshal(s.Items)
		if err != nil {
			// Items are static literals; marshaling cannot fail at runtime.
			panic(err)
		}
		checklists = append(checklists, NRChecklist{
			NRNumber: s.NRNumber,
			NRName:   s.NRName,
			Category: s.Category,
			Items:    items,
		})
	}
	return checklists
}
