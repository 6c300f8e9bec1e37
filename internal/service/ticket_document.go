package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/forgo/marquee/api/internal/model"
)

// qrSize is the edge length of ticket QR codes in pixels
const qrSize = 256

// ticketVerification is the payload encoded in a ticket QR code
type ticketVerification struct {
	Ticket        string `json:"ticket"`
	Event         string `json:"event"`
	Tier          string `json:"tier"`
	TransactionID string `json:"transaction_id"`
}

// QRCode returns a PNG QR code for a ticket held by the actor
func (s *TicketService) QRCode(ctx context.Context, actor Actor, id string) ([]byte, error) {
	ticket, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return ticketQR(ticket)
}

// PDF renders a single-page e-ticket for a ticket held by the actor
func (s *TicketService) PDF(ctx context.Context, actor Actor, id string) ([]byte, error) {
	ticket, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	var holder *model.User
	if s.userRepo != nil {
		if holder, err = s.userRepo.GetByID(ctx, ticket.UserID); err != nil {
			return nil, err
		}
	}
	return renderTicketPDF(ticket, holder)
}

func ticketQR(ticket *model.Ticket) ([]byte, error) {
	payload, err := json.Marshal(ticketVerification{
		Ticket:        ticket.ID,
		Event:         ticket.EventID,
		Tier:          ticket.Tier.Name,
		TransactionID: ticket.TransactionID,
	})
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(string(payload), qrcode.Medium, qrSize)
}

func renderTicketPDF(ticket *model.Ticket, holder *model.User) ([]byte, error) {
	qr, err := ticketQR(ticket)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Marquee e-ticket", true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 22)
	pdf.Cell(0, 15, "MARQUEE E-TICKET")
	pdf.Ln(20)

	title := "Event"
	if ticket.Event != nil {
		title = ticket.Event.Title
	}
	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 8, tr(title), "", "", false)
	pdf.Ln(4)

	yStart := pdf.GetY()
	pdf.SetFillColor(245, 245, 245)
	pdf.Rect(15, yStart, 120, 60, "F")
	pdf.SetXY(20, yStart+5)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		"Ticket: " + ticket.ID,
		fmt.Sprintf("Tier: %s (%.2f)", ticket.Tier.Name, ticket.Tier.Price),
		"Status: " + strings.ToUpper(string(ticket.Status)),
		"Purchased: " + ticket.PurchaseDate.Format("02 Jan 2006 15:04 MST"),
	}
	if ticket.Event != nil {
		lines = append(lines, "Date: "+ticket.Event.Date.Format("Mon 02 Jan 2006 15:04 MST"))
		if loc := formatLocation(ticket.Event.Location); loc != "" {
			lines = append(lines, "Venue: "+loc)
		}
		if ticket.Event.OrganizerName != "" {
			lines = append(lines, "Organizer: "+ticket.Event.OrganizerName)
		}
	}
	if holder != nil {
		lines = append(lines, "Holder: "+holder.FullName())
	}
	for _, line := range lines {
		pdf.SetX(20)
		pdf.Cell(110, 7, tr(line))
		pdf.Ln(7)
	}

	pdf.RegisterImageOptionsReader("qr", gofpdf.ImageOptions{ImageType: "png"}, bytes.NewReader(qr))
	pdf.ImageOptions("qr", 145, yStart+5, 45, 0, false, gofpdf.ImageOptions{ImageType: "png"}, 0, "")

	pdf.SetXY(15, yStart+65)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.Cell(0, 6, "Present this QR code at the entrance. Transaction "+ticket.TransactionID)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func formatLocation(loc model.Location) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{loc.Address, loc.City, loc.State, loc.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
