package models

// BoardSummary - сводка для операторов по последним снимкам коллекций
type BoardSummary struct {
	IncidentsByStatus map[IncidentStatus]int `json:"incidents_by_status"`
	// IncidentsByPriority считает только незакрытые инциденты
	IncidentsByPriority map[Priority]int   `json:"incidents_by_priority"`
	UnitsByStatus       map[UnitStatus]int `json:"units_by_status"`
	OpenDispatches      int                `json:"open_dispatches"`
	// Seq - номер последнего снимка по коллекции; 0 - снимок еще не получен
	Seq map[Collection]uint64 `json:"seq"`
}
