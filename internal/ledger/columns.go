package ledger

// SheetName 台账工作表名。
const SheetName = "Rendelések"

// Column 台账中的一列；顺序即读回时的位置映射。
type Column struct {
	Header string
	Width  float64
}

// Columns 固定的 14 列表头。
var Columns = []Column{
	{Header: "Rendelés ID", Width: 20},
	{Header: "Dátum", Width: 20},
	{Header: "Név", Width: 25},
	{Header: "Email", Width: 30},
	{Header: "Telefon", Width: 15},
	{Header: "Szállítási mód", Width: 20},
	{Header: "FoxPost automata", Width: 30},
	{Header: "Cím", Width: 40},
	{Header: "Termékek", Width: 50},
	{Header: "Mennyiség", Width: 12},
	{Header: "Összeg (Ft)", Width: 15},
	{Header: "Fizetési mód", Width: 20},
	{Header: "Fizetés állapota", Width: 20},
	{Header: "Megjegyzés", Width: 30},
}

// headerFill 表头底色（浅海绿）。
const headerFill = "20B2AA"
