package collector

var (
	divOnly      = []string{"div"}
	headings     = "h2, h3, h4"
	titleClasses = classContains([]string{"h2", "h3", "h4", "span", "div"}, "title", "headline")
)

// DefaultSources 内置新闻源，声明顺序即每轮采集的顺序
func DefaultSources() []Source {
	return []Source{
		{
			Name:       "Blu Radio",
			URL:        "https://www.bluradio.com/nacion",
			BaseURL:    "https://www.bluradio.com",
			Containers: []string{"article", classContains(divOnly, "card", "article", "item")},
			Titles:     []string{headings},
		},
		{
			Name:       "Noticias Caracol",
			URL:        "https://www.noticiascaracol.com/colombia",
			BaseURL:    "https://www.noticiascaracol.com",
			Containers: []string{"article", classContains(divOnly, "card", "article", "news-item")},
			// 先找带 title/headline class 的元素，再退回普通标题标签
			Titles: []string{titleClasses, headings},
		},
		{
			Name:       "Alerta Bogotá",
			URL:        "https://www.alertabogota.com/",
			BaseURL:    "https://www.alertabogota.com",
			Containers: []string{"article", classContains(divOnly, "post", "article", "entry")},
			Titles:     []string{headings},
			HomeCity:   "Bogotá",
		},
		{
			Name:       "Red+",
			URL:        "https://redmas.com.co/",
			BaseURL:    "https://redmas.com.co",
			Containers: []string{"article", classContains(divOnly, "card", "article", "post")},
			Titles:     []string{headings},
		},
		{
			Name:       "Pulzo",
			URL:        "https://www.pulzo.com/nacion",
			BaseURL:    "https://www.pulzo.com",
			Containers: []string{"article", classContains(divOnly, "article", "card", "item")},
			Titles:     []string{headings},
		},
		{
			Name:    "Infobae",
			URL:     "https://www.infobae.com/colombia/",
			BaseURL: "https://www.infobae.com",
			Containers: []string{
				classContains([]string{"a"}, "feed-list-card", "story-card"),
				"article",
				classContains(divOnly, "card", "article"),
			},
			Titles: []string{headings},
			// 首页卡片本身就是 <a>，标题可能在 span 里
			AnchorTitles: []string{headings, "span"},
		},
		{
			Name:       "Diario ADN",
			URL:        "https://www.diarioadn.co/",
			BaseURL:    "https://www.diarioadn.co",
			Containers: []string{"article", classContains(divOnly, "card", "article", "post")},
			Titles:     []string{headings},
		},
	}
}
