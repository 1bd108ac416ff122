package geo

// TablesVersion identifies the revision of the substitution tables below.
// Bump it whenever an entry is added or changed so audit logs can tell
// which rules produced a mapping.
const TablesVersion = "2024.12"

// Substitution replaces a whole-token phrase with another phrase.
type Substitution struct {
	From string
	To   string
}

// abbreviations expand single tokens before punctuation is collapsed.
var abbreviations = map[string]string{
	"sh.":   "shahri",
	"sh":    "shahri",
	"shah.": "shahri",
	"vil.":  "viloyati",
	"vil":   "viloyati",
	"t.":    "tumani",
	"tum.":  "tumani",
	"tum":   "tumani",
	"resp.": "respublikasi",
	"г.":    "город",
	"г":     "город",
	"обл.":  "область",
	"обл":   "область",
	"р-н":   "район",
	"р-н.":  "район",
	"респ.": "республика",

	// English markers map to the Uzbek word so "Tashkent city" and
	// "Tashkent region" stay distinct at the exact step.
	"region":   "viloyati",
	"oblast":   "viloyati",
	"province": "viloyati",
	"city":     "shahri",
	"district": "tumani",
}

// Fixes corrects typos and transliteration variants of local names.
// Applied before Aliases, in order.
var Fixes = []Substitution{
	{From: "fargona", To: "farg'ona"},
	{From: "fergona", To: "farg'ona"},
	{From: "qoraqalpogiston", To: "qoraqalpog'iston"},
	{From: "qoraqalpoqiston", To: "qoraqalpog'iston"},
	{From: "horazm", To: "xorazm"},
	{From: "xorezm", To: "xorazm"},
	{From: "toshkend", To: "toshkent"},
	{From: "samarkand", To: "samarqand"},
	{From: "kashkadaryo", To: "qashqadaryo"},
	{From: "surxandaryo", To: "surxondaryo"},
	{From: "jizax", To: "jizzax"},
	{From: "navoi", To: "navoiy"},
	{From: "andijan", To: "andijon"},
	{From: "bukhoro", To: "buxoro"},
	{From: "shahar", To: "shahri"},
	{From: "tuman", To: "tumani"},
	{From: "viloyat", To: "viloyati"},
}

// Aliases maps exonyms and Russian or Uzbek Cyrillic names to the
// Uzbek Latin name. Applied after Fixes, in order.
var Aliases = []Substitution{
	{From: "tashkent", To: "toshkent"},
	{From: "bukhara", To: "buxoro"},
	{From: "fergana", To: "farg'ona"},
	{From: "ferghana", To: "farg'ona"},
	{From: "khorezm", To: "xorazm"},
	{From: "khorazm", To: "xorazm"},
	{From: "jizzakh", To: "jizzax"},
	{From: "kashkadarya", To: "qashqadaryo"},
	{From: "surkhandarya", To: "surxondaryo"},
	{From: "syrdarya", To: "sirdaryo"},
	{From: "karakalpakstan", To: "qoraqalpog'iston"},

	{From: "ташкент", To: "toshkent"},
	{From: "ташкентская", To: "toshkent"},
	{From: "тошкент", To: "toshkent"},
	{From: "андижан", To: "andijon"},
	{From: "андижанская", To: "andijon"},
	{From: "андижон", To: "andijon"},
	{From: "наманган", To: "namangan"},
	{From: "наманганская", To: "namangan"},
	{From: "фергана", To: "farg'ona"},
	{From: "ферганская", To: "farg'ona"},
	{From: "фарғона", To: "farg'ona"},
	{From: "самарканд", To: "samarqand"},
	{From: "самаркандская", To: "samarqand"},
	{From: "самарқанд", To: "samarqand"},
	{From: "бухара", To: "buxoro"},
	{From: "бухарская", To: "buxoro"},
	{From: "бухоро", To: "buxoro"},
	{From: "хорезм", To: "xorazm"},
	{From: "хорезмская", To: "xorazm"},
	{From: "хоразм", To: "xorazm"},
	{From: "навои", To: "navoiy"},
	{From: "навоийская", To: "navoiy"},
	{From: "навоий", To: "navoiy"},
	{From: "джизак", To: "jizzax"},
	{From: "джизакская", To: "jizzax"},
	{From: "жиззах", To: "jizzax"},
	{From: "кашкадарья", To: "qashqadaryo"},
	{From: "кашкадарьинская", To: "qashqadaryo"},
	{From: "қашқадарё", To: "qashqadaryo"},
	{From: "сурхандарья", To: "surxondaryo"},
	{From: "сурхандарьинская", To: "surxondaryo"},
	{From: "сурхондарё", To: "surxondaryo"},
	{From: "сырдарья", To: "sirdaryo"},
	{From: "сырдарьинская", To: "sirdaryo"},
	{From: "сирдарё", To: "sirdaryo"},
	{From: "каракалпакстан", To: "qoraqalpog'iston"},
	{From: "қорақалпоғистон", To: "qoraqalpog'iston"},
}

// typeTokens are administrative-unit words dropped by StripGeoTypeTokens.
var typeTokens = []string{
	"shahri", "shahar", "tumani", "tuman", "viloyati", "viloyat",
	"respublikasi", "respublika", "region", "district", "city", "province", "oblast",
	"город", "района", "район", "области", "область", "республика", "республики",
	"шаҳри", "шаҳар", "шахри", "тумани", "туман", "вилояти", "вилоят", "республикаси",
}

// categoryFillerTokens are connector and sphere words dropped by
// LooseCategoryName.
var categoryFillerTokens = []string{
	"va", "hamda", "yoki", "bilan", "soha", "sohasi", "bo'yicha",
	"и", "или", "сфера", "and", "or",
}
