package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadFeed(t *testing.T) {
	path := writeFile(t, "feed.csv",
		"document_id,access_number,order_number,external_code,ticket_status,donor_carrier,last_ticket\n"+
			"52998224725,11987654321,ORD-1,EXT-1,Portado,Vivo,sim\n"+
			" 11144477735 ,11912345678,ORD-2,EXT-2,Conflito,,\n")

	records, err := readFeed(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "52998224725", records[0].DocumentID)
	assert.Equal(t, "EXT-1", records[0].ExternalCode)
	assert.Equal(t, "Portado", records[0].TicketStatus)
	require.NotNil(t, records[0].LastTicket)
	assert.True(t, *records[0].LastTicket)

	assert.Equal(t, "11144477735", records[1].DocumentID, "cell whitespace is trimmed")
	assert.Nil(t, records[1].LastTicket, "empty cell stays tri-state unknown")
	assert.Empty(t, records[1].DonorCarrier)
}

func TestReadFeed_MissingColumnsYieldEmptyFields(t *testing.T) {
	path := writeFile(t, "feed.csv",
		"external_code,ticket_status\nEXT-1,Portado\n")

	records, err := readFeed(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "EXT-1", records[0].ExternalCode)
	assert.Empty(t, records[0].DocumentID)
	assert.Empty(t, records[0].OrderNumber)
}

func TestReadFeed_Errors(t *testing.T) {
	_, err := readFeed(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	empty := writeFile(t, "empty.csv", "")
	_, err = readFeed(empty)
	assert.ErrorContains(t, err, "empty file")
}

func TestParseFeedBool(t *testing.T) {
	for _, s := range []string{"1", "true", "sim", "SIM", "yes", " Sim "} {
		v := parseFeedBool(s)
		require.NotNil(t, v, "value %q", s)
		assert.True(t, *v, "value %q", s)
	}
	for _, s := range []string{"0", "false", "não", "nao", "no"} {
		v := parseFeedBool(s)
		require.NotNil(t, v, "value %q", s)
		assert.False(t, *v, "value %q", s)
	}
	for _, s := range []string{"", "talvez", "2"} {
		assert.Nil(t, parseFeedBool(s), "value %q", s)
	}
}

func TestLoadEnrichment(t *testing.T) {
	path := writeFile(t, "enrichment.csv",
		"external_code,order_number,document_id,customer_name,city,tracking_code\n"+
			"EXT-1,ORD-1,529.982.247-25,Maria Silva,São Paulo,BR123\n"+
			"EXT-2,ORD-2,,João Souza,Campinas,\n")

	dataset, err := loadEnrichment(path)
	require.NoError(t, err)
	assert.Equal(t, 2, dataset.Size())

	got := dataset.FindBestMatch("", "", "52998224725")
	require.NotNil(t, got)
	assert.Equal(t, "Maria Silva", got.CustomerName)
}

func TestLoadEnrichment_Errors(t *testing.T) {
	_, err := loadEnrichment(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	empty := writeFile(t, "empty.csv", "")
	_, err = loadEnrichment(empty)
	assert.ErrorContains(t, err, "empty file")
}
