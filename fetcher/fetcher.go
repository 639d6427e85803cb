// Package fetcher scrapes the upstream schedule site for current gacha
// banners and mission events.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/Pawfulness/umamusume-tracker/config"
	"github.com/Pawfulness/umamusume-tracker/metrics"
	"github.com/Pawfulness/umamusume-tracker/model"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"
)

const (
	bannersHeader = "Current Gacha Banners"
	eventsHeader  = "Current Mission Events"

	gachaBannerImagePath = "/images/umamusume/gacha/img_bnr_gacha_"
)

// ErrEmptyUpstream is returned when the upstream page parses cleanly but
// contains no banners and no events. An empty schedule is treated as an
// upstream fault rather than a valid result, so a previously published
// snapshot is never replaced by an accidental blank page.
var ErrEmptyUpstream = errors.New("upstream returned no banners or events")

type Fetcher struct {
	cfg    *config.Config
	client *http.Client
	origin string
}

func NewFetcher(cfg *config.Config) *Fetcher {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.FetchMaxRetries
	rc.Logger = nil

	return &Fetcher{
		cfg:    cfg,
		client: rc.StandardClient(),
		origin: originOf(cfg.SourceURL),
	}
}

// Fetch retrieves the full current batch of banner and event records. It
// either returns a complete batch or an error; it never silently returns a
// partial one. The banner-title listing is best effort: if it cannot be
// fetched, banners fall back to a placeholder title, matching how the
// schedule page itself omits readable names.
func (f *Fetcher) Fetch(ctx context.Context) ([]model.RawRecord, error) {
	var schedule *goquery.Document
	var titles map[string]string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := f.fetchDocument(gctx, f.cfg.SourceURL)
		if err != nil {
			return fmt.Errorf("fetch schedule page: %w", err)
		}
		schedule = doc
		return nil
	})
	g.Go(func() error {
		doc, err := f.fetchDocument(gctx, f.cfg.GachaURL)
		if err != nil {
			log.Printf("[WARN] Failed to fetch gacha listing for banner titles: %v", err)
			return nil
		}
		titles = f.gachaTitlesByImage(doc)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	banners := f.parseBanners(schedule, titles)
	events := f.parseEvents(schedule)

	if len(banners) == 0 && len(events) == 0 {
		return nil, ErrEmptyUpstream
	}

	metrics.RecordsFetched.WithLabelValues(string(model.CategoryBanner)).Add(float64(len(banners)))
	metrics.RecordsFetched.WithLabelValues(string(model.CategoryEvent)).Add(float64(len(events)))
	log.Printf("[INFO] Fetched %d banners and %d events from %s", len(banners), len(events), f.cfg.SourceURL)

	return append(banners, events...), nil
}

func (f *Fetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	if f.cfg.SourceCookie != "" {
		req.Header.Set("Cookie", f.cfg.SourceCookie)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse upstream HTML: %w", err)
	}
	return doc, nil
}

// gachaTitlesByImage builds a banner-image-URL to title map from the gacha
// listing page. The schedule page shows banner images without readable
// names; the listing page carries labels like "Character Gacha".
func (f *Fetcher) gachaTitlesByImage(doc *goquery.Document) map[string]string {
	titles := make(map[string]string)

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if !strings.Contains(src, gachaBannerImagePath) {
			return
		}
		image := f.absoluteURL(src)

		card := img.ParentFiltered("div")
		if card.Length() == 0 {
			return
		}

		var title string
		card.Find("div").EachWithBreak(func(_ int, label *goquery.Selection) bool {
			text := strings.TrimSpace(label.Text())
			if strings.HasSuffix(text, "Gacha") {
				title = text
				return false
			}
			return true
		})
		if title == "" {
			// Fallback: first non-empty text chunk within the card.
			card.Find("div,span").EachWithBreak(func(_ int, label *goquery.Selection) bool {
				text := strings.TrimSpace(label.Text())
				if text != "" {
					title = text
					return false
				}
				return true
			})
		}

		if title != "" {
			titles[image] = title
		}
	})

	return titles
}

func (f *Fetcher) parseBanners(doc *goquery.Document, titles map[string]string) []model.RawRecord {
	var records []model.RawRecord

	f.eachSectionItem(doc, bannersHeader, func(item *goquery.Selection) {
		link, image := f.linkAndImage(item)
		if image == "" {
			return
		}

		title := titles[image]
		if title == "" {
			title = "Gacha Banner"
		}

		start, end := parseTimeWindow(f.itemText(item))
		records = append(records, model.RawRecord{
			ID:       deriveID(link, image),
			Title:    title,
			Start:    start,
			End:      end,
			Category: model.CategoryBanner,
			Image:    image,
			Link:     link,
		})
	})

	return records
}

func (f *Fetcher) parseEvents(doc *goquery.Document) []model.RawRecord {
	var records []model.RawRecord

	f.eachSectionItem(doc, eventsHeader, func(item *goquery.Selection) {
		anchor := item.Find("a").First()
		if anchor.Length() == 0 {
			return
		}
		link, image := f.linkAndImage(item)

		title := strings.TrimSpace(anchor.Text())
		text := f.itemText(item)
		if title == "" && text != "" {
			title = "Mission Event"
		}

		start, end := parseTimeWindow(text)
		records = append(records, model.RawRecord{
			ID:       deriveID(link, image),
			Title:    title,
			Start:    start,
			End:      end,
			Category: model.CategoryEvent,
			Image:    image,
			Link:     link,
		})
	})

	return records
}

// eachSectionItem locates the h2 containing header and visits each direct
// child of the following container div. The schedule page lays sections out
// as h2 + div > div (one div per banner or event card).
func (f *Fetcher) eachSectionItem(doc *goquery.Document, header string, visit func(*goquery.Selection)) {
	var h2 *goquery.Selection
	doc.Find("h2").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.Contains(sel.Text(), header) {
			h2 = sel
			return false
		}
		return true
	})
	if h2 == nil {
		log.Printf("[WARN] Header %q not found on schedule page", header)
		return
	}

	container := h2.NextFiltered("div")
	if container.Length() == 0 {
		return
	}
	container.Children().Each(func(_ int, item *goquery.Selection) {
		visit(item)
	})
}

func (f *Fetcher) linkAndImage(item *goquery.Selection) (link, image string) {
	anchor := item.Find("a").First()
	if href, ok := anchor.Attr("href"); ok {
		link = f.absoluteURL(href)
	}
	if src, ok := anchor.Find("img").First().Attr("src"); ok {
		image = f.absoluteURL(src)
	} else if src, ok := item.Find("img").First().Attr("src"); ok {
		image = f.absoluteURL(src)
	}
	return link, image
}

func (f *Fetcher) itemText(item *goquery.Selection) string {
	return strings.TrimSpace(item.Find(`div[class*="text"]`).First().Text())
}

func (f *Fetcher) absoluteURL(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http") {
		return ref
	}
	return f.origin + ref
}

// deriveID yields a stable record identifier from the item's link, falling
// back to the image file name for items that link nowhere useful.
func deriveID(link, image string) string {
	if id := lastPathSegment(link); id != "" {
		return id
	}
	return lastPathSegment(image)
}

func lastPathSegment(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return ""
	}
	segments := strings.Split(path, "/")
	return segments[len(segments)-1]
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "https://gametora.com"
	}
	return u.Scheme + "://" + u.Host
}
