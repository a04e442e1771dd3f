package collector

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

// 源配置校验错误
var (
	ErrNoSources       = errors.New("at least one source is required")
	ErrSourceName      = errors.New("source name is required")
	ErrDuplicateSource = errors.New("duplicate source name")
	ErrSourceURL       = errors.New("source url must be an absolute http(s) url")
	ErrNoContainers    = errors.New("at least one container selector is required")
	ErrBadSelector     = errors.New("invalid css selector")
)

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// LoadSources 从 YAML 文件读取新闻源列表，整体替换内置列表
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	if err := ValidateSources(f.Sources); err != nil {
		return nil, err
	}
	return f.Sources, nil
}

// ValidateSources 校验名称、地址与全部选择器
func ValidateSources(sources []Source) error {
	if len(sources) == 0 {
		return ErrNoSources
	}
	seen := make(map[string]struct{}, len(sources))
	for i, s := range sources {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("source #%d: %w", i+1, ErrSourceName)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateSource, name)
		}
		seen[name] = struct{}{}

		for _, u := range []string{s.URL, s.BaseURL} {
			if !isHTTPURL(u) {
				return fmt.Errorf("%s: %w: %q", name, ErrSourceURL, u)
			}
		}
		if len(s.Containers) == 0 {
			return fmt.Errorf("%s: %w", name, ErrNoContainers)
		}

		selectors := append(append(append([]string{}, s.Containers...), s.Titles...), s.AnchorTitles...)
		if s.Summary != "" {
			selectors = append(selectors, s.Summary)
		}
		for _, sel := range selectors {
			if _, err := cascadia.ParseGroup(sel); err != nil {
				return fmt.Errorf("%s: %w %q: %v", name, ErrBadSelector, sel, err)
			}
		}
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
