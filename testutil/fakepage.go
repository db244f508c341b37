package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/waybillflow/browser"
)

// FakeElement 描述 FakePage 中的一个元素
type FakeElement struct {
	Visible bool
	Value   string
	Text    string
	Checked bool
	Options []browser.SelectOption
}

// FakePage 是 browser.Page 的内存实现。测试通过预置元素、
// 导航错误和 Eval 钩子来编排页面行为，并通过记录的动作断言流程。
type FakePage struct {
	mu sync.Mutex

	CurrentURL string
	PageTitle  string

	elements map[string]*FakeElement
	textAll  map[string][]string

	// NavErrors 为每个 URL 预置按顺序弹出的导航错误（nil 表示成功）
	NavErrors map[string][]error
	// NavHook 在每次 Navigate 成功后调用，可重写 CurrentURL
	NavHook func(url string)
	// ClickNavHook 在 ClickAndNavigate 后调用，模拟点击引发的跳转
	ClickNavHook func(selector string)
	// EvalHook 处理 Eval 表达式，返回 (结果, 是否已处理)
	EvalHook func(expression string) (any, bool)

	// 动作记录
	Navigations []string
	Clicks      []string
	ClickPoints [][2]float64
	Fills       map[string]string
	Selections  map[string]string

	ScreenshotData []byte
	Closed         bool
}

var _ browser.Page = (*FakePage)(nil)

// NewFakePage 创建空白 FakePage
func NewFakePage() *FakePage {
	return &FakePage{
		elements:   make(map[string]*FakeElement),
		textAll:    make(map[string][]string),
		NavErrors:  make(map[string][]error),
		Fills:      make(map[string]string),
		Selections: make(map[string]string),
	}
}

// AddElement 预置一个元素
func (p *FakePage) AddElement(selector string, el *FakeElement) *FakePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = el
	return p
}

// AddVisible 预置一个可见元素
func (p *FakePage) AddVisible(selector string) *FakePage {
	return p.AddElement(selector, &FakeElement{Visible: true})
}

// RemoveElement 移除元素
func (p *FakePage) RemoveElement(selector string) *FakePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
	return p
}

// SetTextAll 预置 TextAll 的返回值
func (p *FakePage) SetTextAll(selector string, texts []string) *FakePage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.textAll[selector] = texts
	return p
}

// Element 返回预置元素（供断言使用）
func (p *FakePage) Element(selector string) *FakeElement {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elements[selector]
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.Navigations = append(p.Navigations, url)
	if errs := p.NavErrors[url]; len(errs) > 0 {
		err := errs[0]
		p.NavErrors[url] = errs[1:]
		if err != nil {
			p.mu.Unlock()
			return err
		}
	}
	p.CurrentURL = url
	hook := p.NavHook
	p.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	return nil
}

func (p *FakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL, nil
}

func (p *FakePage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PageTitle, nil
}

func (p *FakePage) Exists(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.elements[selector]
	return ok, nil
}

func (p *FakePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	if !ok || !el.Visible {
		return fmt.Errorf("timeout waiting for %s to become visible", selector)
	}
	return nil
}

func (p *FakePage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.elements[selector]; !ok {
		return fmt.Errorf("element not found: %s", selector)
	}
	p.Clicks = append(p.Clicks, selector)
	return nil
}

func (p *FakePage) ClickAndNavigate(ctx context.Context, selector string) error {
	if err := p.Click(ctx, selector); err != nil {
		return err
	}
	p.mu.Lock()
	hook := p.ClickNavHook
	p.mu.Unlock()
	if hook != nil {
		hook(selector)
	}
	return nil
}

func (p *FakePage) ClickAt(ctx context.Context, x, y float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ClickPoints = append(p.ClickPoints, [2]float64{x, y})
	return nil
}

func (p *FakePage) Fill(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	if !ok {
		return fmt.Errorf("element not found: %s", selector)
	}
	el.Value = value
	p.Fills[selector] = value
	return nil
}

func (p *FakePage) Check(ctx context.Context, selector string, checked bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	if !ok {
		return fmt.Errorf("element not found: %s", selector)
	}
	el.Checked = checked
	return nil
}

func (p *FakePage) SelectByValue(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	if !ok {
		return fmt.Errorf("element not found: %s", selector)
	}
	if len(el.Options) > 0 {
		found := false
		for _, o := range el.Options {
			if o.Value == value {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("option %q not accepted by %s", value, selector)
		}
	}
	el.Value = value
	p.Selections[selector] = value
	return nil
}

func (p *FakePage) Options(ctx context.Context, selector string) ([]browser.SelectOption, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elements[selector]
	if !ok {
		return nil, nil
	}
	return el.Options, nil
}

func (p *FakePage) Value(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[selector]; ok {
		return el.Value, nil
	}
	return "", nil
}

func (p *FakePage) Text(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[selector]; ok {
		return el.Text, nil
	}
	return "", nil
}

func (p *FakePage) TextAll(ctx context.Context, selector string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if texts, ok := p.textAll[selector]; ok {
		return texts, nil
	}
	if el, ok := p.elements[selector]; ok && el.Text != "" {
		return []string{el.Text}, nil
	}
	return nil, nil
}

// Eval 先查询 EvalHook；未处理的表达式返回错误，
// 避免测试悄悄依赖未编排的行为。
func (p *FakePage) Eval(ctx context.Context, expression string, out any) error {
	p.mu.Lock()
	hook := p.EvalHook
	p.mu.Unlock()

	if hook != nil {
		if result, handled := hook(expression); handled {
			if out == nil {
				return nil
			}
			data, err := json.Marshal(result)
			if err != nil {
				return err
			}
			return json.Unmarshal(data, out)
		}
	}
	return fmt.Errorf("unscripted eval expression: %s", expression)
}

func (p *FakePage) ElementScreenshot(ctx context.Context, selector string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.elements[selector]; !ok {
		return nil, fmt.Errorf("element not found: %s", selector)
	}
	if p.ScreenshotData != nil {
		return p.ScreenshotData, nil
	}
	return []byte("fake-png"), nil
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}
