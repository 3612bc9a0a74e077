package api

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
)

const dateLayout = "2006-01-02"

// FilterRequest is the wire form of a filter. A nil Months or Variables
// selects the defaults; an empty one selects nothing.
type FilterRequest struct {
	Start     string                  `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End       string                  `json:"end" validate:"omitempty,datetime=2006-01-02"`
	Months    []int                   `json:"months" validate:"omitempty,dive,min=1,max=12"`
	Variables []string                `json:"variables" validate:"omitempty,dive,oneof=PM2.5 PM10 TEMP PRES DEWP RAIN WSPM"`
	Ranges    map[string]models.Range `json:"ranges" validate:"omitempty,dive,keys,oneof=PM2.5 PM10 TEMP PRES DEWP RAIN WSPM,endkeys"`
	Preview   *int                    `json:"preview" validate:"omitempty,gte=0,lte=100"`
}

var validate = validator.New()

// parseFilterQuery reads start, end, months, variables, range and preview
// from the query string.
func parseFilterQuery(c *fiber.Ctx) (FilterRequest, error) {
	args := c.Request().URI().QueryArgs()
	req := FilterRequest{
		Start: strings.TrimSpace(c.Query("start")),
		End:   strings.TrimSpace(c.Query("end")),
	}

	if args.Has("months") {
		req.Months = []int{}
		for _, part := range splitList(c.Query("months")) {
			m, err := strconv.Atoi(part)
			if err != nil {
				return req, fmt.Errorf("invalid month %q", part)
			}
			req.Months = append(req.Months, m)
		}
	}

	if args.Has("variables") {
		req.Variables = splitList(c.Query("variables"))
	}

	if raw := c.Query("range"); raw != "" {
		req.Ranges = make(map[string]models.Range)
		for _, part := range splitList(raw) {
			fields := strings.Split(part, ":")
			if len(fields) != 3 {
				return req, fmt.Errorf("invalid range %q, want VARIABLE:LOW:HIGH", part)
			}
			low, err := parseBound(fields[1])
			if err != nil {
				return req, fmt.Errorf("invalid range %q: %w", part, err)
			}
			high, err := parseBound(fields[2])
			if err != nil {
				return req, fmt.Errorf("invalid range %q: %w", part, err)
			}
			req.Ranges[strings.TrimSpace(fields[0])] = models.Range{Low: low, High: high}
		}
	}

	if raw := c.Query("preview"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("invalid preview %q", raw)
		}
		req.Preview = &n
	}

	return req, nil
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBound(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) {
		return 0, fmt.Errorf("bound must be a number")
	}
	return f, nil
}

// Spec validates the request and converts it. End dates cover the whole day.
func (r FilterRequest) Spec() (models.FilterSpec, int, error) {
	if err := validate.Struct(r); err != nil {
		return models.FilterSpec{}, 0, err
	}

	spec := models.DefaultFilterSpec()
	if r.Months != nil {
		spec.Months = append([]int{}, r.Months...)
	}
	if r.Variables != nil {
		spec.Variables = make([]models.Variable, 0, len(r.Variables))
		for _, v := range r.Variables {
			spec.Variables = append(spec.Variables, models.Variable(v))
		}
	}
	if len(r.Ranges) > 0 {
		spec.Ranges = make(map[models.Variable]models.Range, len(r.Ranges))
		for v, rng := range r.Ranges {
			if math.IsNaN(rng.Low) || math.IsNaN(rng.High) {
				return models.FilterSpec{}, 0, fmt.Errorf("range for %s must be numeric", v)
			}
			spec.Ranges[models.Variable(v)] = rng
		}
	}

	if r.Start != "" {
		start, err := time.ParseInLocation(dateLayout, r.Start, time.UTC)
		if err != nil {
			return models.FilterSpec{}, 0, err
		}
		spec.Start = start
	}
	if r.End != "" {
		end, err := time.ParseInLocation(dateLayout, r.End, time.UTC)
		if err != nil {
			return models.FilterSpec{}, 0, err
		}
		spec.End = end.Add(24*time.Hour - time.Nanosecond)
	}

	preview := -1
	if r.Preview != nil {
		preview = *r.Preview
	}
	return spec, preview, nil
}
