package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"argus-news-pipeline/internal/config"
	"argus-news-pipeline/internal/models"
	"argus-news-pipeline/internal/pkg/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/sony/gobreaker"
)

// ArticleScraper enriches a seed article with full body text when the feed
// only carried a summary. Scraping is best-effort: a seed that cannot be
// enriched comes back with its summary as the analysis text, never an error.
type ArticleScraper interface {
	ScrapeArticle(ctx context.Context, article *models.ArticleContent) (*models.ArticleContent, error)
}

type ScraperService struct {
	collector *colly.Collector
	breaker   *gobreaker.CircuitBreaker
	logger    *logger.Logger
	config    config.ScraperConfig

	mu         sync.Mutex
	userAgents []string
	uaIndex    int
}

func NewScraperService(cfg config.ScraperConfig, log *logger.Logger) (*ScraperService, error) {
	collector := colly.NewCollector(
		colly.AllowedDomains(), // allow all domains
	)

	collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 2,
		Delay:       cfg.DomainDelay,
	})
	collector.SetRequestTimeout(cfg.RequestTimeout)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "article-scraper",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("scraper circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	service := &ScraperService{
		collector: collector,
		breaker:   breaker,
		logger:    log,
		config:    cfg,
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/120.0",
		},
	}

	log.Info("scraper service initialized",
		"domain_delay", cfg.DomainDelay.String(),
		"timeout", cfg.RequestTimeout.String())

	return service, nil
}

// ScrapeArticle fills in FullText for a seed article. A seed that already
// carries full text passes through untouched. Any scraping failure falls
// back to the summary so the pipeline always has something to analyze.
func (service *ScraperService) ScrapeArticle(ctx context.Context, article *models.ArticleContent) (*models.ArticleContent, error) {
	if article == nil {
		return nil, models.NewValidationError("NIL_ARTICLE", "article cannot be nil")
	}
	if strings.TrimSpace(article.FullText) != "" {
		return article, nil
	}
	if article.URL == "" {
		article.FullText = article.Summary
		return article, nil
	}

	startTime := time.Now()

	result, err := service.breaker.Execute(func() (interface{}, error) {
		return service.fetchBody(ctx, article.URL)
	})

	duration := time.Since(startTime)

	if err != nil {
		service.logger.LogService("scraper", "scrape_article", duration, map[string]interface{}{
			"url":      article.URL,
			"fallback": "summary",
		}, err)
		article.FullText = article.Summary
		return article, nil
	}

	body, ok := result.(*scrapedBody)
	if !ok || strings.TrimSpace(body.Content) == "" {
		service.logger.Warn("scrape produced no usable body text", "url", article.URL)
		article.FullText = article.Summary
		return article, nil
	}

	article.FullText = body.Content
	if len(article.Authors) == 0 && body.Author != "" {
		article.Authors = []string{body.Author}
	}

	service.logger.LogService("scraper", "scrape_article", duration, map[string]interface{}{
		"url":            article.URL,
		"content_length": len(body.Content),
	}, nil)

	return article, nil
}

type scrapedBody struct {
	Content string
	Author  string
}

func (service *ScraperService) fetchBody(ctx context.Context, targetURL string) (*scrapedBody, error) {
	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return nil, models.NewScrapingError("INVALID_URL", "article URL is not parseable").WithCause(err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, models.NewScrapingError("UNSUPPORTED_SCHEME", fmt.Sprintf("unsupported URL scheme: %s", parsedURL.Scheme))
	}

	c := service.collector.Clone()
	body := &scrapedBody{}
	var scrapeErr error

	c.OnRequest(func(r *colly.Request) {
		service.mu.Lock()
		userAgent := service.userAgents[service.uaIndex]
		service.uaIndex = (service.uaIndex + 1) % len(service.userAgents)
		service.mu.Unlock()

		r.Headers.Set("User-Agent", userAgent)
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		body.Content = service.extractBodyText(e)
		body.Author = extractAuthor(e)
	})

	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		scrapeErr = models.NewScrapingError("FETCH_FAILED", fmt.Sprintf("HTTP %d fetching article", status)).WithCause(err)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Visit(targetURL); err != nil && scrapeErr == nil {
			scrapeErr = models.NewScrapingError("VISIT_FAILED", "visit failed").WithCause(err)
		}
		c.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, models.NewTimeoutError("SCRAPER_TIMEOUT", "scraping request timed out").WithCause(ctx.Err())
	}

	if scrapeErr != nil {
		return nil, scrapeErr
	}
	return body, nil
}

// extractBodyText scrapes the visible article text, preferring paragraph
// content over the raw body dump.
func (service *ScraperService) extractBodyText(e *colly.HTMLElement) string {
	paragraphs := e.ChildTexts("article p")
	if len(paragraphs) < 3 {
		paragraphs = e.ChildTexts("p")
	}
	if len(paragraphs) >= 3 {
		cleaned := service.cleanBody(strings.Join(paragraphs, "\n\n"))
		if len(cleaned) > 200 {
			return cleaned
		}
	}

	var texts []string
	skipTags := map[string]bool{"script": true, "style": true, "nav": true, "footer": true, "header": true, "noscript": true}
	e.DOM.Find("body *").Each(func(_ int, s *goquery.Selection) {
		if skipTags[strings.ToLower(goquery.NodeName(s))] {
			return
		}
		text := strings.TrimSpace(s.Text())
		if len(text) > 30 {
			texts = append(texts, text)
		}
	})

	cleaned := service.cleanBody(strings.Join(texts, "\n\n"))
	if len(cleaned) > 200 {
		return cleaned
	}
	return ""
}

func extractAuthor(e *colly.HTMLElement) string {
	selectors := []string{
		"[rel='author']", "[itemprop='author'] [itemprop='name']",
		"[itemprop='author']", ".author-name", ".article-author",
		".byline-author", ".post-author", ".byline",
	}
	for _, sel := range selectors {
		if author := strings.TrimSpace(e.ChildText(sel)); author != "" {
			return author
		}
	}
	return strings.TrimSpace(e.ChildAttr("meta[name='author']", "content"))
}

var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)javascript:void\(0\)`),
	regexp.MustCompile(`(?i)advertisement`),
	regexp.MustCompile(`(?i)subscribe to.*newsletter`),
	regexp.MustCompile(`(?i)follow us on`),
	regexp.MustCompile(`(?i)share this article`),
}

func (service *ScraperService) cleanBody(content string) string {
	if content == "" {
		return content
	}

	content = whitespaceRun.ReplaceAllString(content, " ")
	for _, pattern := range boilerplatePatterns {
		content = pattern.ReplaceAllString(content, "")
	}

	content = strings.TrimSpace(content)
	if service.config.MaxBodyChars > 0 && len(content) > service.config.MaxBodyChars {
		content = content[:service.config.MaxBodyChars] + "..."
	}
	return content
}

func (service *ScraperService) HealthCheck(ctx context.Context) error {
	switch service.breaker.State() {
	case gobreaker.StateOpen:
		return fmt.Errorf("scraper circuit breaker is open")
	default:
		return nil
	}
}
