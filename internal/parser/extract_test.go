package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"participants-bot/internal/models"
	"participants-bot/internal/refdata"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	return NewExtractor(refdata.Default())
}

func values(fs models.FieldSet) map[models.Field]string {
	out := map[models.Field]string{}
	for _, f := range fs.Fields() {
		out[f] = fs.Value(f)
	}
	return out
}

func TestExtractFullMessage(t *testing.T) {
	e := newTestExtractor(t)

	fs := e.Extract("Анна Иванова F S церковь Благодать команда worship", false)

	assert.Equal(t, map[models.Field]string{
		models.FieldFullNameRU: "Анна Иванова",
		models.FieldGender:     "F",
		models.FieldSize:       "S",
		models.FieldChurch:     "Благодать",
		models.FieldRole:       "TEAM",
		models.FieldDepartment: "Worship",
	}, values(fs))
	assert.Equal(t, models.FieldTentative, fs.Status(models.FieldGender))
}

func TestExtractAmbiguousM(t *testing.T) {
	e := newTestExtractor(t)

	tests := []struct {
		name       string
		in         string
		wantGender string
		wantSize   string
	}{
		{"size keyword", "размер M", "", "M"},
		{"gender keyword", "пол M", "M", ""},
		{"no context defaults to gender", "Иван Петров M L церковь Грейс", "M", "L"},
		{"gender found earlier", "Анна Ж M", "F", "M"},
		{"size found earlier", "Иван XL M", "M", "XL"},
		{"unambiguous gender nearby", "Иван M F", "F", "M"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := e.Extract(tt.in, false)
			assert.Equal(t, tt.wantGender, fs.Value(models.FieldGender))
			assert.Equal(t, tt.wantSize, fs.Value(models.FieldSize))
		})
	}
}

func TestExtractKeepsSizeKeywordOutOfName(t *testing.T) {
	e := newTestExtractor(t)

	fs := e.Extract("размер M", false)

	assert.False(t, fs.Has(models.FieldGender))
	assert.False(t, fs.Has(models.FieldFullNameRU))
}

func TestExtractContact(t *testing.T) {
	e := newTestExtractor(t)

	fs := e.Extract("Иван Петров 050 123 45 67", false)
	assert.Equal(t, "0501234567", fs.Value(models.FieldContactInformation))
	assert.Equal(t, "Иван Петров", fs.Value(models.FieldFullNameRU))

	fs = e.Extract("Мария Smith maria@example.com +972 52 765 4321", false)
	assert.Equal(t, "maria@example.com", fs.Value(models.FieldContactInformation))
	assert.Equal(t, "Мария", fs.Value(models.FieldFullNameRU))
	assert.Equal(t, "Smith", fs.Value(models.FieldFullNameEN))
}

func TestExtractNames(t *testing.T) {
	e := newTestExtractor(t)

	fs := e.Extract("Jane СЕРГЕЕВНА Smith", false)
	assert.Equal(t, "Jane Smith", fs.Value(models.FieldFullNameEN))
	assert.Equal(t, "Сергеевна", fs.Value(models.FieldFullNameRU))

	fs = e.Extract("иван петров Ivan Petrov", false)
	assert.Equal(t, "Иван Петров", fs.Value(models.FieldFullNameRU))
	assert.Equal(t, "Ivan Petrov", fs.Value(models.FieldFullNameEN))
}

func TestExtractChurch(t *testing.T) {
	e := newTestExtractor(t)

	fs := e.Extract("Ольга слово жизни", false)
	assert.Equal(t, "Слово Жизни", fs.Value(models.FieldChurch))
	assert.Equal(t, "Ольга", fs.Value(models.FieldFullNameRU))

	fs = e.Extract("Иван Благодат", false)
	assert.Equal(t, "Благодать", fs.Value(models.FieldChurch))
	assert.Equal(t, "Иван", fs.Value(models.FieldFullNameRU))

	fs = e.Extract(`Иван церковь "Новый Завет" M`, false)
	assert.Equal(t, "Новый Завет", fs.Value(models.FieldChurch))
	assert.Equal(t, "Иван", fs.Value(models.FieldFullNameRU))
}

func TestExtractCity(t *testing.T) {
	e := newTestExtractor(t)

	fs := e.Extract("Давид Тель Авив", false)
	assert.Equal(t, "Тель-Авив", fs.Value(models.FieldCountryAndCity))
	assert.Equal(t, "Давид", fs.Value(models.FieldFullNameRU))

	fs = e.Extract("Давид Haifa", false)
	assert.Equal(t, "Хайфа", fs.Value(models.FieldCountryAndCity))
}

func TestExtractDepartment(t *testing.T) {
	e := newTestExtractor(t)

	fs := e.Extract("Пётр kitchn", false)
	assert.Equal(t, "Kitchen", fs.Value(models.FieldDepartment))
	assert.Equal(t, "TEAM", fs.Value(models.FieldRole), "department implies team")

	fs = e.Extract("Пётр кандидат кухня", false)
	assert.Equal(t, "CANDIDATE", fs.Value(models.FieldRole))
	assert.False(t, fs.Has(models.FieldDepartment))
}

func TestExtractSurnameIsNotDepartment(t *testing.T) {
	e := newTestExtractor(t)

	fs := e.Extract("Ольга Медина F M", false)
	assert.Equal(t, "Ольга Медина", fs.Value(models.FieldFullNameRU))
	assert.False(t, fs.Has(models.FieldDepartment))
	assert.False(t, fs.Has(models.FieldRole))

	fs = e.Extract("Анна Bella Smith", false)
	assert.Equal(t, "Bella Smith", fs.Value(models.FieldFullNameEN))
	assert.False(t, fs.Has(models.FieldDepartment))

	fs = e.Extract("Анна медя", false)
	assert.False(t, fs.Has(models.FieldDepartment), "four letters are too short to guess")

	fs = e.Extract("Анна Иванова worshp", false)
	assert.Equal(t, "Worship", fs.Value(models.FieldDepartment))
}

func TestExtractNothing(t *testing.T) {
	e := newTestExtractor(t)

	assert.True(t, e.Extract("", false).Empty())
	assert.True(t, e.Extract("  ,;  ", false).Empty())
	assert.True(t, e.Extract("12", false).Empty())
}

func TestParseDispatch(t *testing.T) {
	e := newTestExtractor(t)

	_, src := e.Parse("Анна F S", false)
	assert.Equal(t, SourceFreeText, src)

	_, src = e.Parse("Имя (рус): Анна\nПол: Ж\nРазмер: S", false)
	assert.Equal(t, SourceTemplate, src)

	fs, src := e.Parse("поменяй размер на XL", true)
	require.Equal(t, SourceIntent, src)
	assert.Equal(t, map[models.Field]string{models.FieldSize: "XL"}, values(fs))
}
