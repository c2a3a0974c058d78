package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Format - формат выгрузки
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat разбирает формат; пустое значение - CSV
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", domain.InvalidArgument("unknown export format %q", raw)
}

// ContentType возвращает MIME-тип формата
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename возвращает имя файла выгрузки на дату
func (f Format) Filename(day time.Time) string {
	return fmt.Sprintf("export_attestations_%s.%s", day.Format(domain.DateLayout), f)
}

const exportDate = "02/01/2006"

// columns совпадают с заголовками файла импорта, поэтому выгрузку можно загрузить обратно
var columns = []string{
	"N° Feuillet",
	"Type Feuillet",
	"Agence",
	"N° Police",
	"Souscripteur",
	"Immatriculation",
	"Date d'Effet",
	"Date d'Echéance",
	"Marque",
	"Usage",
	"Nombre de Places",
	"Adresse",
	"Statut",
	"Date de Création",
}

func record(c *domain.Certificate, today time.Time) []string {
	return []string{
		strconv.FormatInt(c.SheetNumber, 10),
		string(c.SheetType),
		c.AgencyName,
		c.PolicyNumber,
		c.Holder,
		c.VehicleID,
		formatDate(c.EffectiveDate),
		formatDate(c.ExpiryDate),
		c.Brand,
		c.Usage,
		strconv.Itoa(c.Seats),
		c.Address,
		string(c.Status(today)),
		formatDate(c.CreatedAt),
	}
}

// Write выгружает аттестаты в выбранном формате; статус считается на дату today
func Write(f Format, certs []*domain.Certificate, today time.Time) ([]byte, error) {
	if f == FormatXLSX {
		return XLSX(certs, today)
	}
	return CSV(certs, today)
}

// CSV выгружает аттестаты в CSV с заголовком
func CSV(certs []*domain.Certificate, today time.Time) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return nil, err
	}
	for _, c := range certs {
		if err := w.Write(record(c, today)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

const sheetName = "Attestations"

// XLSX выгружает аттестаты в книгу Excel с одним листом
func XLSX(certs []*domain.Certificate, today time.Time) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	set := func(col, row int, value interface{}) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return file.SetCellValue(sheetName, cell, value)
	}

	for i, h := range columns {
		if err := set(i+1, 1, h); err != nil {
			return nil, err
		}
	}

	for i, c := range certs {
		row := i + 2
		values := record(c, today)
		for j, v := range values {
			var value interface{} = v
			// Номер бланка и число мест пишем числами
			switch j {
			case 0:
				value = c.SheetNumber
			case 10:
				value = c.Seats
			}
			if err := set(j+1, row, value); err != nil {
				return nil, err
			}
		}
	}

	_ = file.SetColWidth(sheetName, "A", "C", 16)
	_ = file.SetColWidth(sheetName, "D", "E", 28)
	_ = file.SetColWidth(sheetName, "F", "N", 16)

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(exportDate)
}
