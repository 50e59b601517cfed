package payment

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

const invoiceContentType = "text/plain; charset=utf-8"

func invoiceFileName(p *Payment) string {
	return p.InvoiceNumber + ".txt"
}

// RenderInvoice writes a plain text invoice for p.
func RenderInvoice(p *Payment, planName string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "INVOICE %s\n\n", p.InvoiceNumber)

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Member\t#%d\n", p.MemberID)
	if planName != "" {
		fmt.Fprintf(w, "Plan\t%s (#%d)\n", planName, p.PlanID)
	} else {
		fmt.Fprintf(w, "Plan\t#%d\n", p.PlanID)
	}
	fmt.Fprintf(w, "Payment method\t%s\n", p.Method)
	fmt.Fprintf(w, "Status\t%s\n", p.Status)
	fmt.Fprintf(w, "Issued\t%s\n", p.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))
	if p.PaidAt != nil {
		fmt.Fprintf(w, "Paid\t%s\n", p.PaidAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	if p.TransactionID != nil {
		fmt.Fprintf(w, "Transaction\t%s\n", *p.TransactionID)
	}
	fmt.Fprintln(w, "\t")
	fmt.Fprintf(w, "Amount\t%s %s\n", p.Amount.StringFixed(2), p.Currency)
	fmt.Fprintf(w, "Discount\t-%s %s\n", p.Discount.StringFixed(2), p.Currency)
	fmt.Fprintf(w, "Total\t%s %s\n", p.FinalAmount.StringFixed(2), p.Currency)
	w.Flush()

	return buf.Bytes()
}
