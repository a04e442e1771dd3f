package processor

import "strings"

const (
	// CityUnidentified 文本中没有识别出任何城市时的占位值
	CityUnidentified = "unidentified"
	// CityColombia 只提到国家、没有具体城市
	CityColombia = "Colombia"
)

// CityAlias 城市名的一种写法（小写，含带/不带重音两种形式）到标准名称的映射
type CityAlias struct {
	Key  string
	Name string
}

// DefaultCities 匹配顺序即声明顺序：多个城市同时出现时，排在前面的胜出。
// "colombia" 这一泛化条目总是排在所有具体城市之后处理。
var DefaultCities = []CityAlias{
	{"bogotá", "Bogotá"},
	{"bogota", "Bogotá"},
	{"medellín", "Medellín"},
	{"medellin", "Medellín"},
	{"cali", "Cali"},
	{"barranquilla", "Barranquilla"},
	{"cartagena", "Cartagena"},
	{"bucaramanga", "Bucaramanga"},
	{"pereira", "Pereira"},
	{"manizales", "Manizales"},
	{"santa marta", "Santa Marta"},
	{"ibagué", "Ibagué"},
	{"ibague", "Ibagué"},
	{"cúcuta", "Cúcuta"},
	{"cucuta", "Cúcuta"},
	{"villavicencio", "Villavicencio"},
	{"pasto", "Pasto"},
	{"neiva", "Neiva"},
	{"armenia", "Armenia"},
	{"montería", "Montería"},
	{"monteria", "Montería"},
	{"valledupar", "Valledupar"},
	{"popayán", "Popayán"},
	{"popayan", "Popayán"},
	{"tunja", "Tunja"},
	{"sincelejo", "Sincelejo"},
	{"florencia", "Florencia"},
	{"quibdó", "Quibdó"},
	{"quibdo", "Quibdó"},
	{"riohacha", "Riohacha"},
	{"yopal", "Yopal"},
	{"leticia", "Leticia"},
	{"mocoa", "Mocoa"},
	{"arauca", "Arauca"},
	{"mitú", "Mitú"},
	{"mitu", "Mitú"},
	{"puerto carreño", "Puerto Carreño"},
	{"san andrés", "San Andrés"},
	{"san andres", "San Andrés"},
	{"inírida", "Inírida"},
	{"inirida", "Inírida"},
	{"colombia", CityColombia},
}

// CityClassifier 纯函数式的城市识别，无状态、无 I/O
type CityClassifier struct {
	aliases []CityAlias
}

func NewCityClassifier(aliases []CityAlias) *CityClassifier {
	c := &CityClassifier{aliases: make([]CityAlias, 0, len(aliases))}
	for _, a := range aliases {
		key := fold(a.Key)
		if key == "" {
			continue
		}
		c.aliases = append(c.aliases, CityAlias{Key: key, Name: a.Name})
	}
	return c
}

// Classify 返回第一个命中的具体城市；只命中 "colombia" 时返回 Colombia；都没有返回 CityUnidentified
func (c *CityClassifier) Classify(text string) string {
	if text == "" {
		return CityUnidentified
	}
	lower := fold(text)
	for _, a := range c.aliases {
		if a.Name == CityColombia {
			continue
		}
		if strings.Contains(lower, a.Key) {
			return a.Name
		}
	}
	// 泛化条目延后处理
	for _, a := range c.aliases {
		if a.Name == CityColombia && strings.Contains(lower, a.Key) {
			return CityColombia
		}
	}
	if strings.Contains(lower, "colombia") {
		return CityColombia
	}
	return CityUnidentified
}
