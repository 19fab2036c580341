// internal/dispatch/template.go
package dispatch

import (
	"fmt"
	"html/template"
	"strings"
)

// The order email shares one layout for the staff copy and the customer
// copy; only the subject differs.
var orderEmailTmpl = template.Must(template.New("order-email").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #e0e0e0; border-radius: 5px;">
  <h1 style="color: #d32f2f; text-align: center;">New Order Placed!</h1>
  <div style="background-color: #f5f5f5; padding: 15px; border-radius: 5px; margin-bottom: 20px;">
    <p style="margin: 5px 0"><strong>Order ID:</strong> {{.OrderID}}</p>
    <p style="margin: 5px 0"><strong>Customer:</strong> {{.Customer.Name}}</p>
    <p style="margin: 5px 0"><strong>Email:</strong> {{.Customer.Email}}</p>
    <p style="margin: 5px 0"><strong>Phone:</strong> {{.Customer.Phone}}</p>
  </div>

  <h2 style="color: #555; border-bottom: 1px solid #eee; padding-bottom: 10px;">Delivery Address:</h2>
  <p style="margin-bottom: 20px;">{{.DeliveryAddress.Street}}, {{.DeliveryAddress.City}}, {{.DeliveryAddress.State}}, {{.DeliveryAddress.ZipCode}}</p>

  <h2 style="color: #555; border-bottom: 1px solid #eee; padding-bottom: 10px;">Order Items:</h2>
  <div style="background-color: #f9f9f9; padding: 15px; border-radius: 5px; margin-bottom: 20px;">
    {{range .Items}}{{.Quantity}}x {{.Size}} {{.Name}} (₹{{printf "%.2f" .Price}} each)<br>{{end}}
  </div>

  <div style="background-color: #f0f8ff; padding: 15px; border-radius: 5px; margin-bottom: 20px;">
    <p style="margin: 5px 0"><strong>Total Amount:</strong> ₹{{printf "%.2f" .TotalPrice}}</p>
    <p style="margin: 5px 0"><strong>Payment Method:</strong> {{.PaymentLabel}}</p>
    <p style="margin: 5px 0"><strong>Instructions:</strong> {{.InstructionsLabel}}</p>
  </div>

  <p style="text-align: center; color: #888; font-size: 0.8em;">This is an automated email from Pizza Host ordering system.</p>
</div>
`))

type orderEmailData struct {
	PlacedOrder
}

func (d orderEmailData) PaymentLabel() string {
	if d.PaymentMethod == "cod" {
		return "Cash on Delivery"
	}
	return "Card Payment"
}

func (d orderEmailData) InstructionsLabel() string {
	if d.Instructions == "" {
		return "None"
	}
	return d.Instructions
}

func renderOrderEmail(order PlacedOrder) (string, error) {
	var buf strings.Builder
	if err := orderEmailTmpl.Execute(&buf, orderEmailData{PlacedOrder: order}); err != nil {
		return "", fmt.Errorf("render order email: %w", err)
	}
	return buf.String(), nil
}

func staffSubject(orderID string) string {
	return fmt.Sprintf("New Pizza Order #%s", orderID)
}

func customerSubject(orderID string) string {
	return fmt.Sprintf("Your Pizza Host Order Confirmation #%s", orderID)
}
