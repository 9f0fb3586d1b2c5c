package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ==== Типы колонок ====

type ColumnType string

const (
	ColumnText   ColumnType = "text"
	ColumnNumber ColumnType = "number"
)

func (t ColumnType) Valid() bool {
	return t == ColumnText || t == ColumnNumber
}

// ==== Сущности ====

// Base владеет таблицами. Удаление — мягкое (флаг), физическая чистка вне ядра.
type Base struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	IsDeleted bool      `json:"isDeleted"`
}

type Table struct {
	ID        string    `json:"id"`
	BaseID    string    `json:"baseId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	IsDeleted bool      `json:"isDeleted"`
}

// Column — колонка таблицы; Order задаёт порядок отображения по умолчанию.
type Column struct {
	ID        string     `json:"id"`
	TableID   string     `json:"tableId"`
	Name      string     `json:"name"`
	Type      ColumnType `json:"type"`
	Order     int        `json:"order"`
	IsDeleted bool       `json:"isDeleted"`
}

type Row struct {
	ID        string    `json:"id"`
	TableID   string    `json:"tableId"`
	CreatedAt time.Time `json:"createdAt"`
	IsDeleted bool      `json:"isDeleted"`
}

// Cell — EAV-факт: одна ячейка на пару (row, column).
// Value хранит сырую строку; ровно одна из проекций ValueText/ValueNumber
// не-nil — какая именно, определяется типом колонки в момент записи.
// Проекции нужны, чтобы сортировка/фильтры били по типизированной
// индексируемой колонке, а не парсили Value на каждый запрос.
type Cell struct {
	RowID       string   `json:"rowId"`
	ColumnID    string   `json:"columnId"`
	Value       string   `json:"value"`
	ValueText   *string  `json:"flattenedValueText"`
	ValueNumber *float64 `json:"flattenedValueNumber"`
}

// RowWithCells — строка с подцепленными ячейками (ответ планировщика).
type RowWithCells struct {
	Row
	Cells []Cell `json:"cells"`
}

// View — сохранённая конфигурация отображения; строками не владеет.
// Filters/Sorts/ColumnOrder/HiddenColumns мутируются фронтом целиком
// и читаются планировщиком как есть.
type View struct {
	ID            string   `json:"id"`
	TableID       string   `json:"tableId"`
	Name          string   `json:"name"`
	Type          string   `json:"type"` // режим отображения, ядром не интерпретируется
	ColumnOrder   []string `json:"columnOrder"`
	HiddenColumns []string `json:"hiddenColumns"`
	Filters       []Filter `json:"filters"`
	Sorts         []Sort   `json:"sorts"`
}

// ==== Фильтры и сортировки (value objects) ====

type FilterOperator string

const (
	OpContains     FilterOperator = "contains"
	OpEquals       FilterOperator = "equals"
	OpNotContains  FilterOperator = "not_contains"
	OpGreaterThan  FilterOperator = "greater_than"
	OpLessThan     FilterOperator = "less_than"
	OpGreaterEqual FilterOperator = "greater_equal"
	OpLessEqual    FilterOperator = "less_equal"
	OpIsEmpty      FilterOperator = "is_empty"
	OpIsNotEmpty   FilterOperator = "is_not_empty"
)

// операторы по типу колонки
var textOperators = map[FilterOperator]bool{
	OpContains: true, OpEquals: true, OpNotContains: true,
	OpIsEmpty: true, OpIsNotEmpty: true,
}

var numberOperators = map[FilterOperator]bool{
	OpEquals: true, OpGreaterThan: true, OpLessThan: true,
	OpGreaterEqual: true, OpLessEqual: true,
	OpIsEmpty: true, OpIsNotEmpty: true,
}

// OperatorAllowed — допустим ли оператор для данного типа колонки.
func OperatorAllowed(t ColumnType, op FilterOperator) bool {
	switch t {
	case ColumnText:
		return textOperators[op]
	case ColumnNumber:
		return numberOperators[op]
	}
	return false
}

// NeedsValue — требует ли оператор операнда (is_empty/is_not_empty — нет).
func (op FilterOperator) NeedsValue() bool {
	return op != OpIsEmpty && op != OpIsNotEmpty
}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

func (d SortDirection) Valid() bool { return d == SortAsc || d == SortDesc }

// FilterValue — операнд фильтра; с фронта приходит либо строкой, либо числом.
type FilterValue struct {
	raw   string
	num   float64
	isNum bool
}

func TextValue(s string) *FilterValue { return &FilterValue{raw: s} }

func NumberValue(f float64) *FilterValue {
	return &FilterValue{raw: strconv.FormatFloat(f, 'f', -1, 64), num: f, isNum: true}
}

func (v *FilterValue) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) > 0 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		v.raw = str
		v.isNum = false
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	v.raw = strings.TrimSpace(s)
	v.num = f
	v.isNum = true
	return nil
}

func (v *FilterValue) MarshalJSON() ([]byte, error) {
	if v.isNum {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.raw)
}

// Text — строковое представление (для text-фильтров; по умолчанию "").
func (v *FilterValue) Text() string {
	if v == nil {
		return ""
	}
	return v.raw
}

// Number — числовое представление (для number-фильтров; по умолчанию 0).
func (v *FilterValue) Number() (float64, error) {
	if v == nil {
		return 0, nil
	}
	if v.isNum {
		return v.num, nil
	}
	if strings.TrimSpace(v.raw) == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.TrimSpace(v.raw), 64)
}

// Filter — одно условие; ColumnType обязан совпадать с фактическим типом
// колонки (проверяется планировщиком, молчаливой коэрсии нет).
type Filter struct {
	ColumnID   string         `json:"columnId"`
	ColumnType ColumnType     `json:"columnType"`
	Operator   FilterOperator `json:"operator"`
	Value      *FilterValue   `json:"value,omitempty"`
}

type Sort struct {
	ColumnID   string        `json:"columnId"`
	ColumnType ColumnType    `json:"columnType"`
	Direction  SortDirection `json:"direction"`
}
