package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/csrf"
	"golang.org/x/crypto/bcrypt"

	"github.com/marilagman/petalsandcrumbs/internal/models"
)

func (h *AdminHandler) ListRiders(w http.ResponseWriter, r *http.Request) {
	riders, err := h.Store.GetAllRiders()
	if err != nil {
		http.Error(w, "Error fetching riders", http.StatusInternalServerError)
		return
	}

	tmpl := h.Templates.Get("admin_riders.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}
	session, _ := h.SessionStore.Get(r, "admin-session")
	data := map[string]interface{}{
		"Riders":    riders,
		"CsrfField": csrf.TemplateField(r),
		"Flashes":   GetFlash(session),
	}
	session.Save(r, w)
	tmpl.Execute(w, data)
}

func (h *AdminHandler) CreateRider(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "admin-session")
	defer session.Save(r, w)

	name := r.FormValue("name")
	phone := r.FormValue("phone")
	vehicle := r.FormValue("vehicle")
	username := r.FormValue("username")
	password := r.FormValue("password")

	if name == "" || username == "" || password == "" {
		session.AddFlash(FlashMessage{Type: "error", Message: "Name, username and password are required."})
		http.Redirect(w, r, "/admin/riders", http.StatusSeeOther)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Error creating rider account."})
		http.Redirect(w, r, "/admin/riders", http.StatusSeeOther)
		return
	}

	rider := &models.Rider{
		Name:     name,
		Phone:    phone,
		Vehicle:  vehicle,
		Username: username,
		Password: string(hashed),
	}
	if err := h.Store.CreateRider(rider); err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Error saving rider. Username may already exist."})
		http.Redirect(w, r, "/admin/riders", http.StatusSeeOther)
		return
	}

	session.AddFlash(FlashMessage{Type: "success", Message: "Rider added successfully!"})
	http.Redirect(w, r, "/admin/riders", http.StatusSeeOther)
}

func (h *AdminHandler) UpdateRider(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "admin-session")
	defer session.Save(r, w)

	id, err := strconv.Atoi(r.FormValue("id"))
	if err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Invalid rider ID."})
		http.Redirect(w, r, "/admin/riders", http.StatusSeeOther)
		return
	}

	rider := &models.Rider{
		ID:      id,
		Name:    r.FormValue("name"),
		Phone:   r.FormValue("phone"),
		Vehicle: r.FormValue("vehicle"),
	}
	if rider.Name == "" {
		session.AddFlash(FlashMessage{Type: "error", Message: "Rider name is required."})
		http.Redirect(w, r, "/admin/riders", http.StatusSeeOther)
		return
	}

	if err := h.Store.UpdateRider(rider); err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Error updating rider."})
		http.Redirect(w, r, "/admin/riders", http.StatusSeeOther)
		return
	}
	session.AddFlash(FlashMessage{Type: "success", Message: "Rider updated."})
	http.Redirect(w, r, "/admin/riders", http.StatusSeeOther)
}

func (h *AdminHandler) DeleteRider(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "admin-session")
	defer session.Save(r, w)

	id, err := strconv.Atoi(r.FormValue("id"))
	if err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Invalid rider ID."})
		http.Redirect(w, r, "/admin/riders", http.StatusSeeOther)
		return
	}

	if err := h.Store.DeleteRider(id); err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Error deleting rider."})
		http.Redirect(w, r, "/admin/riders", http.StatusSeeOther)
		return
	}
	session.AddFlash(FlashMessage{Type: "success", Message: "Rider deleted."})
	http.Redirect(w, r, "/admin/riders", http.StatusSeeOther)
}
