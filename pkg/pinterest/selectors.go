package pinterest

import "pinrunner/pkg/locator"

// Selector sets in rank order. The data-test-id attributes are the most
// stable hooks the site ships; aria labels and generic structure follow as
// fallbacks.
var (
	// closeup
	likeButton = locator.New("like button",
		"[data-test-id='closeup-like-button'] button",
		"[data-test-id='like-button']",
		"button[aria-label='React']",
	)
	saveButton = locator.New("save button",
		"[data-test-id='PinBetterSaveButton']",
		"[data-test-id='save-button']",
		"div[data-test-id='closeup-body'] button[aria-label='Save']",
	)
	savedMarker = locator.New("saved confirmation",
		"[data-test-id='toast-saved']",
		"[data-test-id='saved-info']",
		"[data-test-id='PinBetterSaveButton'][aria-pressed='true']",
	)
	boardDropdown = locator.New("board dropdown",
		"[data-test-id='board-dropdown-select-button']",
		"[data-test-id='boardDropdownSelectButton']",
		"button[aria-label='Select a board you want to save to']",
	)
	boardRow = locator.New("board option",
		"[data-test-id='board-row']",
		"[data-test-id='boardWithoutSection']",
		"div[role='listbox'] div[role='button']",
	)
	pinOptions = locator.New("pin options menu",
		"[data-test-id='closeup-action-items'] button[aria-label='More actions']",
		"[data-test-id='more-options']",
		"button[aria-label='More actions']",
	)
	editPinItem = locator.New("edit pin item",
		"[data-test-id='pin-action-dropdown-edit-pin']",
		"[data-test-id='edit-pin']",
	)
	deletePinItem = locator.New("delete pin item",
		"[data-test-id='pin-action-dropdown-delete-pin']",
		"[data-test-id='delete-pin-button']",
		"[data-test-id='edit-pin-delete']",
	)
	confirmDelete = locator.New("delete confirmation",
		"[data-test-id='confirm-delete-pin'] button",
		"[data-test-id='delete-pin-confirm']",
		"div[role='dialog'] button[type='submit']",
	)

	// comments
	commentOpen = locator.New("comment section toggle",
		"[data-test-id='closeup-comments-button']",
		"[data-test-id='comments-expand']",
	)
	commentInput = locator.New("comment box",
		"[data-test-id='comment-editor-container'] div[contenteditable='true']",
		"[data-test-id='comment-input']",
		"textarea[name='comment']",
	)
	commentSubmit = locator.New("comment submit",
		"[data-test-id='activity-item-create-submit'] button",
		"[data-test-id='comment-submit']",
	)
	commentText = locator.New("posted comment",
		"[data-test-id='comment-text']",
		"[data-test-id='commentThread-comment'] span",
	)

	// pin builder
	imageInput = locator.New("image upload",
		"[data-test-id='storyboard-upload-input']",
		"[data-test-id='media-upload-input']",
		"input[type='file'][accept*='image']",
		"input[type='file']",
	)
	titleInput = locator.New("title field",
		"[data-test-id='pin-draft-title'] input",
		"input#storyboard-selector-title",
		"input[name='title']",
	)
	descriptionInput = locator.New("description field",
		"[data-test-id='pin-draft-description'] div[contenteditable='true']",
		"[data-test-id='pin-draft-description'] textarea",
		"textarea[name='description']",
	)
	linkInput = locator.New("link field",
		"[data-test-id='pin-draft-link'] input",
		"input#WebsiteField",
		"input[name='link']",
	)
	altTextToggle = locator.New("alt text toggle",
		"[data-test-id='pin-draft-alttext-button']",
		"[data-test-id='add-alt-text']",
	)
	altTextInput = locator.New("alt text field",
		"[data-test-id='pin-draft-alt-text'] textarea",
		"textarea[name='altText']",
	)
	publishButton = locator.New("publish button",
		"[data-test-id='storyboard-creation-nav-done'] button",
		"[data-test-id='board-dropdown-save-button']",
		"[data-test-id='publish-button']",
	)
	publishedLink = locator.New("published pin link",
		"[data-test-id='seeItNow'] a",
		"[data-test-id='published-pin-link']",
		"a[data-test-id='see-your-pin']",
	)

	// boards
	createMenu = locator.New("create menu",
		"[data-test-id='header-profile-create-button']",
		"[data-test-id='create-button']",
		"button[aria-label='Create']",
	)
	createBoardItem = locator.New("create board item",
		"[data-test-id='Create board']",
		"[data-test-id='create-board']",
	)
	boardNameInput = locator.New("board name field",
		"input#boardEditName",
		"[data-test-id='board-name-input'] input",
		"input[name='boardName']",
	)
	boardDescriptionInput = locator.New("board description field",
		"textarea#boardEditDescription",
		"textarea[name='boardDescription']",
	)
	secretToggle = locator.New("secret toggle",
		"input#secret",
		"[data-test-id='secret-board-toggle']",
		"input[name='secret']",
	)
	createBoardSubmit = locator.New("create board submit",
		"[data-test-id='board-form-submit-button'] button",
		"[data-test-id='create-board-submit']",
		"form button[type='submit']",
	)
	boardTitle = locator.New("board title",
		"[data-test-id='board-name'] h1",
		"[data-test-id='board-header'] h1",
		"h1",
	)

	// follow
	boardFollow = locator.New("board follow button",
		"[data-test-id='board-follow-button']",
		"[data-test-id='BoardFollowButton'] button",
	)
	boardUnfollow = locator.New("board following button",
		"[data-test-id='board-unfollow-button']",
		"[data-test-id='BoardFollowingButton'] button",
	)
	userFollow = locator.New("user follow button",
		"[data-test-id='user-follow-button']",
		"[data-test-id='profile-follow-button'] button",
	)
	userUnfollow = locator.New("user following button",
		"[data-test-id='user-unfollow-button']",
		"[data-test-id='profile-following-button'] button",
	)

	// listings
	pinGrid = locator.New("pin grid",
		"[data-test-id='board-feed'] [data-grid-item='true']",
		"div[role='list'] [data-grid-item='true']",
		"[data-test-id='pin']",
	)
	resultGrid = locator.Join("search results", pinGrid,
		locator.New("board and user results",
			"[data-test-id='board-card']",
			"[data-test-id='user-rep']",
		),
	)
	profileHeader = locator.New("profile header",
		"[data-test-id='profile-header']",
		"[data-test-id='profile-name']",
		"[data-test-id='profile-username']",
	)
	emptyResults = locator.New("no results notice",
		"[data-test-id='search-empty-state']",
		"[data-test-id='no-results']",
	)
)
