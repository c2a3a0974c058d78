package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/frontandrew/attestation/internal/domain"
)

// Row - строка файла импорта в исходном текстовом виде
type Row struct {
	Line          int // номер строки данных, с 1, без заголовка
	SheetNumber   string
	SheetType     string
	PolicyNumber  string
	Holder        string
	AgencyName    string
	VehicleID     string
	EffectiveDate string
	ExpiryDate    string
	Address       string
	Usage         string
	Brand         string
	Seats         string
}

type column int

const (
	colSheetNumber column = iota
	colSheetType
	colPolicyNumber
	colHolder
	colAgency
	colVehicle
	colEffective
	colExpiry
	colAddress
	colUsage
	colBrand
	colSeats
)

// headerAliases - заголовки выгрузки агентств и их машинные синонимы
var headerAliases = map[string]column{
	"n° feuillet":      colSheetNumber,
	"no feuillet":      colSheetNumber,
	"numfeuillet":      colSheetNumber,
	"sheet_number":     colSheetNumber,
	"type feuillet":    colSheetType,
	"typefeuillet":     colSheetType,
	"sheet_type":       colSheetType,
	"n° police":        colPolicyNumber,
	"no police":        colPolicyNumber,
	"numeropolice":     colPolicyNumber,
	"policy_number":    colPolicyNumber,
	"souscripteur":     colHolder,
	"holder":           colHolder,
	"agence":           colAgency,
	"agency":           colAgency,
	"immatriculation":  colVehicle,
	"vehicle_id":       colVehicle,
	"date d'effet":     colEffective,
	"dateeffet":        colEffective,
	"effective_date":   colEffective,
	"date d'echéance":  colExpiry,
	"date d'échéance":  colExpiry,
	"date d'echeance":  colExpiry,
	"dateecheance":     colExpiry,
	"expiry_date":      colExpiry,
	"adresse":          colAddress,
	"address":          colAddress,
	"usage":            colUsage,
	"marque":           colBrand,
	"brand":            colBrand,
	"nombre de places": colSeats,
	"nombreplaces":     colSeats,
	"seats":            colSeats,
}

var requiredColumns = map[column]string{
	colSheetNumber:  "N° Feuillet",
	colSheetType:    "Type Feuillet",
	colPolicyNumber: "N° Police",
	colHolder:       "Souscripteur",
	colAgency:       "Agence",
	colEffective:    "Date d'Effet",
	colExpiry:       "Date d'Echéance",
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ReplaceAll(h, "’", "'")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// detectDelimiter выбирает ';' или ',' по строке заголовка
func detectDelimiter(header []byte) rune {
	if bytes.Count(header, []byte(";")) > bytes.Count(header, []byte(",")) {
		return ';'
	}
	return ','
}

// ParseCSV читает файл импорта с заголовком. Разделитель - запятая или точка с запятой,
// пустые строки пропускаются, порядок колонок произвольный.
func ParseCSV(r io.Reader) ([]Row, error) {
	br := bufio.NewReader(r)
	peek, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}
	firstLine := peek
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		firstLine = peek[:i]
	}

	reader := csv.NewReader(br)
	reader.Comma = detectDelimiter(firstLine)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.InvalidArgument("import file is empty")
	}
	if err != nil {
		return nil, domain.InvalidArgument("malformed CSV header: %v", err)
	}

	index := make(map[column]int)
	for i, h := range header {
		if col, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, dup := index[col]; !dup {
				index[col] = i
			}
		}
	}

	var missing []string
	for col := colSheetNumber; col <= colSeats; col++ {
		if name, required := requiredColumns[col]; required {
			if _, ok := index[col]; !ok {
				missing = append(missing, name)
			}
		}
	}
	if len(missing) > 0 {
		return nil, domain.InvalidArgument("missing columns: %s", strings.Join(missing, ", "))
	}

	var rows []Row
	for line := 1; ; {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.RowError{Row: line, Err: domain.InvalidArgument("malformed CSV: %v", err)}
		}
		if blank(record) {
			continue
		}

		get := func(col column) string {
			i, ok := index[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		rows = append(rows, Row{
			Line:          line,
			SheetNumber:   get(colSheetNumber),
			SheetType:     get(colSheetType),
			PolicyNumber:  get(colPolicyNumber),
			Holder:        get(colHolder),
			AgencyName:    get(colAgency),
			VehicleID:     get(colVehicle),
			EffectiveDate: get(colEffective),
			ExpiryDate:    get(colExpiry),
			Address:       get(colAddress),
			Usage:         get(colUsage),
			Brand:         get(colBrand),
			Seats:         get(colSeats),
		})
		line++
	}

	return rows, nil
}

func blank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
