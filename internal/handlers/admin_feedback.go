package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/csrf"
)

func (h *AdminHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	feedback, err := h.Store.GetAllFeedback()
	if err != nil {
		http.Error(w, "Error fetching feedback", http.StatusInternalServerError)
		return
	}

	tmpl := h.Templates.Get("admin_feedback.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}
	session, _ := h.SessionStore.Get(r, "admin-session")
	data := map[string]interface{}{
		"Feedback":  feedback,
		"CsrfField": csrf.TemplateField(r),
		"Flashes":   GetFlash(session),
	}
	session.Save(r, w)
	tmpl.Execute(w, data)
}

func (h *AdminHandler) ReplyToFeedback(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "admin-session")
	defer session.Save(r, w)

	id, err := strconv.Atoi(r.FormValue("id"))
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	reply := r.FormValue("reply")
	if reply == "" {
		session.AddFlash(FlashMessage{Type: "error", Message: "Reply text cannot be empty."})
		http.Redirect(w, r, "/admin/feedback", http.StatusSeeOther)
		return
	}

	if err := h.Store.ReplyToFeedback(id, reply); err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Error saving reply."})
		http.Redirect(w, r, "/admin/feedback", http.StatusSeeOther)
		return
	}
	session.AddFlash(FlashMessage{Type: "success", Message: "Reply sent."})
	http.Redirect(w, r, "/admin/feedback", http.StatusSeeOther)
}
