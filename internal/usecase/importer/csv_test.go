package importer

import (
	"strings"
	"testing"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	t.Run("заголовки агентств с BOM и произвольным порядком", func(t *testing.T) {
		data := "\ufeffAgence,N° Feuillet,Type Feuillet,N° Police,Souscripteur,Date d’Effet,Date d'Échéance,Marque\n" +
			"Analakely,12,jaune,P-1,Rakoto,2025-01-01,2025-12-31,Toyota\n"

		rows, err := ParseCSV(strings.NewReader(data))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, Row{
			Line:          1,
			SheetNumber:   "12",
			SheetType:     "jaune",
			PolicyNumber:  "P-1",
			Holder:        "Rakoto",
			AgencyName:    "Analakely",
			EffectiveDate: "2025-01-01",
			ExpiryDate:    "2025-12-31",
			Brand:         "Toyota",
		}, rows[0])
	})

	t.Run("машинные заголовки", func(t *testing.T) {
		data := "sheet_number,sheet_type,policy_number,holder,agency,vehicle_id,effective_date,expiry_date,seats\n" +
			"1,ROUGE,P,H,A,V,2025-01-01,2025-12-31,4\n" +
			"\n" +
			"2,ROUGE,P,H,A,V2,2025-01-01,2025-12-31,4\n"

		rows, err := ParseCSV(strings.NewReader(data))
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 2, rows[1].Line)
		assert.Equal(t, "4", rows[1].Seats)
	})

	t.Run("нет обязательных колонок", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader("N° Feuillet,Agence\n1,Analakely\n"))
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
		assert.Contains(t, err.Error(), "Souscripteur")
	})

	t.Run("пустой файл", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader(""))
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("битая кавычка", func(t *testing.T) {
		data := "sheet_number,sheet_type,policy_number,holder,agency,effective_date,expiry_date\n" +
			"1,\"ROUGE,P,H,A,2025-01-01,2025-12-31\n"

		_, err := ParseCSV(strings.NewReader(data))
		var rowErr *domain.RowError
		require.ErrorAs(t, err, &rowErr)
		assert.Equal(t, 1, rowErr.Row)
	})
}
