package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"

	"rewards-ledger/services"

	"github.com/gofiber/fiber/v2"
)

// SetupPostbackRoutes mounts the offer network callback. It sits outside the gateway group;
// responses are short plain-text acknowledgments.
func SetupPostbackRoutes(app *fiber.App, postbacks *services.PostbackService) {
	handle := func(c *fiber.Ctx) error {
		params := postbackParams(c)
		res := postbacks.Handle(c.UserContext(), services.PostbackInput{
			ClickID:     params["clickid"],
			OfferIDHint: params["offerid"],
			EventName:   params["event"],
			Payout:      params["payout"],
			Status:      params["status"],
			IPAddress:   c.IP(),
			Raw:         params,
		})
		return c.Status(res.HTTPStatus).SendString(res.Message)
	}

	app.Get("/postback", handle)
	app.Post("/postback", handle)
}

// postbackParams merges query, form and JSON body parameters. Body values win.
func postbackParams(c *fiber.Ctx) map[string]string {
	params := make(map[string]string)
	c.Request().URI().QueryArgs().VisitAll(func(k, v []byte) {
		params[string(k)] = string(v)
	})
	if c.Method() != fiber.MethodPost {
		return params
	}

	c.Request().PostArgs().VisitAll(func(k, v []byte) {
		params[string(k)] = string(v)
	})
	if c.Is("json") {
		var body map[string]any
		dec := json.NewDecoder(bytes.NewReader(c.Body()))
		dec.UseNumber()
		if err := dec.Decode(&body); err == nil {
			for k, v := range body {
				switch t := v.(type) {
				case nil:
				case string:
					params[k] = t
				case json.Number:
					params[k] = t.String()
				default:
					params[k] = fmt.Sprint(t)
				}
			}
		}
	}
	return params
}
