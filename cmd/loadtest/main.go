package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Kind   string
	Err    error
}

type orderItem struct {
	ID       int `json:"id"`
	Quantity int `json:"quantity"`
	Price    int `json:"price"`
}

type customerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	ZipCode string `json:"zipCode"`
	City    string `json:"city"`
	Address string `json:"address"`
}

type orderReq struct {
	OrderID        string       `json:"orderId"`
	Items          []orderItem  `json:"items"`
	CustomerInfo   customerInfo `json:"customerInfo"`
	ShippingMethod string       `json:"shippingMethod"`
	Total          int          `json:"total"`
}

func main() {
	baseURL := flag.String("base", "http://localhost:3000", "server base url")
	productID := flag.Int("product", 1, "product id")
	qty := flag.Int("qty", 1, "units per order")
	price := flag.Int("price", 1000, "unit price sent with each order")

	// 超卖测试参数：200 笔订单并发抢同一商品
	nOrders := flag.Int("orders", 200, "number of distinct orders")
	concurrency := flag.Int("c", 50, "max concurrency")
	dup := flag.Int("dup", 20, "concurrent resubmissions of one order id (0 to skip)")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	before, err := getQuantity(client, *baseURL, *productID)
	if err != nil {
		fmt.Println("initial quantity check err:", err)
	} else {
		fmt.Println("initial quantity:", before)
	}

	// 1) 不超卖测试：不同 orderId、不同客户并发下单
	runID := time.Now().UnixNano()
	fmt.Printf("start oversell test: product=%d orders=%d qty=%d concurrency=%d\n", *productID, *nOrders, *qty, *concurrency)
	results := runOrders(client, *baseURL, *nOrders, *concurrency, func(i int) orderReq {
		return newOrder(fmt.Sprintf("LT-%d-%d", runID, i), fmt.Sprintf("load%d@example.com", i), *productID, *qty, *price)
	})
	printSummary("oversell", results)

	after, err := getQuantity(client, *baseURL, *productID)
	if err != nil {
		fmt.Println("final quantity check err:", err)
	} else {
		fmt.Println("final quantity:", after)
		if after < 0 {
			fmt.Println("OVERSOLD: quantity went negative")
		}
	}

	// 2) 幂等测试：同一个 orderId 并发重复提交，预期最多 1 个 200
	if *dup > 0 {
		id := fmt.Sprintf("LT-%d-dup", runID)
		fmt.Printf("\nstart duplicate test: order=%s requests=%d\n", id, *dup)
		results2 := runOrders(client, *baseURL, *dup, *dup, func(int) orderReq {
			return newOrder(id, "dup@example.com", *productID, *qty, *price)
		})
		printSummary("duplicate", results2)
	}
}

func newOrder(id, email string, productID, qty, price int) orderReq {
	return orderReq{
		OrderID: id,
		Items:   []orderItem{{ID: productID, Quantity: qty, Price: price}},
		CustomerInfo: customerInfo{
			Name: "Load Test", Email: email, Phone: "+36300000000",
			ZipCode: "1111", City: "Budapest", Address: "Teszt utca 1.",
		},
		ShippingMethod: "home",
		Total:          qty * price,
	}
}

func runOrders(client *http.Client, baseURL string, total, concurrency int, build func(i int) orderReq) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = completeOnce(client, baseURL, build(idx))
		}(i)
	}

	wg.Wait()
	return results
}

func completeOnce(client *http.Client, baseURL string, req orderReq) Result {
	b, _ := json.Marshal(req)
	httpReq, _ := http.NewRequest(http.MethodPost, baseURL+"/api/complete-order", bytes.NewReader(b))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var out struct {
		Kind string `json:"kind"`
	}
	_ = json.Unmarshal(body, &out)
	return Result{Status: resp.StatusCode, Kind: out.Kind}
}

// printSummary 聚合输出状态码与错误类别分布。
func printSummary(name string, results []Result) {
	count := map[string]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		key := fmt.Sprintf("%d", r.Status)
		if r.Kind != "" {
			key += " " + r.Kind
		}
		count[key]++
	}
	keys := make([]string, 0, len(count))
	for k := range count {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("[%s] http status summary:\n", name)
	for _, k := range keys {
		fmt.Printf("  %s -> %d\n", k, count[k])
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

// getQuantity 查询商品当前库存，用于压测后校验是否出现超卖。
func getQuantity(client *http.Client, baseURL string, productID int) (int, error) {
	resp, err := client.Get(fmt.Sprintf("%s/api/products/%d", baseURL, productID))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		Quantity int `json:"quantity"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return 0, err
	}
	return out.Quantity, nil
}
