package models

// Collection - имя коллекции документов в хранилище
type Collection string

const (
	CollectionIncidents  Collection = "incidents"
	CollectionUnits      Collection = "units"
	CollectionDispatches Collection = "dispatches"
)

// Collections перечисляет все коллекции координации
var Collections = []Collection{CollectionIncidents, CollectionUnits, CollectionDispatches}

// Valid проверяет, что имя коллекции известно
func (c Collection) Valid() bool {
	switch c {
	case CollectionIncidents, CollectionUnits, CollectionDispatches:
		return true
	}
	return false
}
