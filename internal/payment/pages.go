package payment

import (
	"fmt"
	"html/template"
	"io"
	"sort"

	"github.com/kwan772/Youtube-TLDR/internal/models"
)

// planView is one plan card on the selection page.
type planView struct {
	ID       string
	Name     string
	Price    string
	Features []string
}

type plansPageData struct {
	UserID string
	Plans  []planView
}

type resultPageData struct {
	Success bool
	Plan    string
	Message string
}

var plansTmpl = template.Must(template.New("plans").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>YouTube TLDR - Choose a Plan</title>
  <style>
    body { font-family: -apple-system, sans-serif; background: #f5f5f5; margin: 0; padding: 40px 20px; }
    .plans { display: flex; gap: 24px; justify-content: center; flex-wrap: wrap; }
    .plan { background: #fff; border-radius: 12px; padding: 32px; width: 280px; box-shadow: 0 2px 8px rgba(0,0,0,.1); }
    .plan h2 { margin-top: 0; }
    .price { font-size: 2em; font-weight: 700; margin: 12px 0; }
    ul { padding-left: 20px; color: #444; }
    button { width: 100%; padding: 12px; border: 0; border-radius: 8px; background: #c00; color: #fff; font-size: 1em; cursor: pointer; }
    button:hover { background: #a00; }
  </style>
</head>
<body>
  <h1 style="text-align:center">Choose your plan</h1>
  <div class="plans">
  {{range .Plans}}
    <div class="plan">
      <h2>{{.Name}}</h2>
      <div class="price">{{.Price}}<span style="font-size:.5em;color:#888">/month</span></div>
      <ul>{{range .Features}}<li>{{.}}</li>{{end}}</ul>
      <form method="GET" action="/payment">
        <input type="hidden" name="userId" value="{{$.UserID}}">
        <input type="hidden" name="plan" value="{{.ID}}">
        <button type="submit">Subscribe</button>
      </form>
    </div>
  {{end}}
  </div>
</body>
</html>
`))

var resultTmpl = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>YouTube TLDR - Payment {{if .Success}}Complete{{else}}Failed{{end}}</title>
  <style>
    body { font-family: -apple-system, sans-serif; background: #f5f5f5; display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
    .card { background: #fff; border-radius: 12px; padding: 48px; max-width: 420px; text-align: center; box-shadow: 0 2px 8px rgba(0,0,0,.1); }
    .icon { font-size: 3em; }
  </style>
</head>
<body>
  <div class="card">
    {{if .Success}}
    <div class="icon">&#10004;</div>
    <h1>Payment successful</h1>
    <p>Your {{.Plan}} plan is now active. You can close this tab and return to YouTube.</p>
    {{else}}
    <div class="icon">&#10008;</div>
    <h1>Payment failed</h1>
    <p>{{.Message}}</p>
    {{end}}
  </div>
</body>
</html>
`))

// RenderPlansPage writes the plan-selection page for an identified caller.
func RenderPlansPage(w io.Writer, userID string) error {
	plans := make([]models.Plan, 0, len(models.Plans))
	for _, p := range models.Plans {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].PriceCents < plans[j].PriceCents })

	views := make([]planView, 0, len(plans))
	for _, p := range plans {
		views = append(views, planView{
			ID:       p.ID,
			Name:     p.Name,
			Price:    formatPrice(p.PriceCents),
			Features: p.Features,
		})
	}
	return plansTmpl.Execute(w, plansPageData{UserID: userID, Plans: views})
}

// RenderResultPage writes the post-checkout landing page.
func RenderResultPage(w io.Writer, success bool, plan, message string) error {
	return resultTmpl.Execute(w, resultPageData{Success: success, Plan: plan, Message: message})
}

func formatPrice(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
