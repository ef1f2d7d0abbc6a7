package domain

// CategoryVocabulary is the closed set of category labels the intent extractor
// may emit. Labels match the VehicleType node names produced at ingestion; the
// extractor must never invent a label outside this list.
var CategoryVocabulary = []string{
	"Xe ô tô",
	"Xe mô tô, xe máy",
	"Xe thô sơ",
	"Xe khách, xe buýt",
	"Xe tải, container",
	"Rơ moóc, sơ mi rơ moóc",
	"Xe chuyên dụng",
	"Taxi, xe du lịch",
	"Xe đạp",
	"Người đi bộ",
	"Nồng độ cồn",
	"Giấy phép lái xe",
	"Tốc độ",
	"Kinh doanh vận tải",
}

var categorySet = func() map[string]bool {
	m := make(map[string]bool, len(CategoryVocabulary))
	for _, c := range CategoryVocabulary {
		m[c] = true
	}
	return m
}()

// KnownCategory reports whether a label belongs to the closed vocabulary.
func KnownCategory(label string) bool { return categorySet[label] }
